package bot

import (
	"fmt"
	"strings"
	"time"

	"asteroid-miner/src/overview"
	"asteroid-miner/src/screenshot"
)

// State is the current phase of the mining cycle.
type State int

const (
	StateIdleScanning State = iota
	StateApproaching
	StateLocking
	StateMiningStart
	StateMiningLoop
)

func (s State) String() string {
	switch s {
	case StateIdleScanning:
		return "IDLE_SCANNING"
	case StateApproaching:
		return "APPROACHING"
	case StateLocking:
		return "LOCKING"
	case StateMiningStart:
		return "MINING_START"
	case StateMiningLoop:
		return "MINING_LOOP"
	default:
		return "UNKNOWN"
	}
}

// Target is the asteroid the bot is working on. It is owned by the bot and only ever
// leaves it as a copy.
type Target struct {
	Label    string
	Ore      string
	Pos      screenshot.Point
	Distance overview.Distance
}

// Snapshot is a read-only copy of the bot's state for status renderers and the control
// channel.
type Snapshot struct {
	State      State
	Target     Target
	HasTarget  bool
	Halted     bool
	HaltReason string
	LastError  string
	Ticks      int
	Rows       []overview.Row
	At         time.Time
	// Running is filled in by the loop driving the bot.
	Running bool
}

// String renders the snapshot as one status line.
func (s Snapshot) String() string {
	var b strings.Builder
	if s.Halted {
		fmt.Fprintf(&b, "HALTED (%s) ", s.HaltReason)
	}
	fmt.Fprintf(&b, "state=%s", s.State)
	if s.HasTarget {
		fmt.Fprintf(&b, " target=%q distance=%s", s.Target.Label, s.Target.Distance)
	}
	fmt.Fprintf(&b, " ticks=%d rows=%d", s.Ticks, len(s.Rows))
	if s.LastError != "" {
		fmt.Fprintf(&b, " last_error=%q", s.LastError)
	}
	return b.String()
}

// OverviewText is the last read Overview, one row per line.
func (s Snapshot) OverviewText() string {
	lines := make([]string, len(s.Rows))
	for i, r := range s.Rows {
		lines[i] = r.Text
	}
	return strings.Join(lines, "\n")
}
