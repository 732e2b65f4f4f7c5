// Package status renders bot snapshots for the user and turns their input back into
// loop requests.
package status

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"asteroid-miner/src/bot"
	"asteroid-miner/src/logutil"
)

// Renderer shows the bot's state. Render is called from the loop goroutine after every
// step and must not block.
type Renderer interface {
	Render(s bot.Snapshot)
	Close() error
}

// Actions are the user requests a renderer can raise. Nil actions are ignored.
type Actions struct {
	Toggle func()
	Copy   func()
	Quit   func()
}

func (a Actions) OnToggle() { call(a.Toggle) }
func (a Actions) OnCopy()   { call(a.Copy) }
func (a Actions) OnQuit()   { call(a.Quit) }

func call(f func()) {
	if f != nil {
		f()
	}
}

// Lines formats a snapshot for line-oriented displays.
func Lines(s bot.Snapshot) []string {
	lines := []string{"Asteroid Miner"}
	if s.Halted {
		lines = append(lines, "HALTED: "+s.HaltReason)
	}
	lines = append(lines, "State:  "+s.State.String())
	if s.HasTarget {
		lines = append(lines, fmt.Sprintf("Target: %s (%s)", s.Target.Label, s.Target.Distance))
	} else {
		lines = append(lines, "Target: none")
	}
	lines = append(lines, fmt.Sprintf("Ticks:  %d", s.Ticks))
	if s.LastError != "" {
		lines = append(lines, "Error:  "+s.LastError)
	}
	lines = append(lines, "", "Overview:")
	if len(s.Rows) == 0 {
		lines = append(lines, "  (empty)")
	}
	for _, r := range s.Rows {
		lines = append(lines, "  "+r.Text)
	}
	return lines
}

// Tooltip is a one-line summary for space-constrained displays such as a tray icon.
func Tooltip(s bot.Snapshot) string {
	if s.Halted {
		return "Miner: HALTED - " + s.HaltReason
	}
	if s.HasTarget {
		return fmt.Sprintf("Miner: %s %s", s.State, s.Target.Distance)
	}
	return "Miner: " + s.State.String()
}

// LogRenderer writes a line to the log whenever the state, target or halt flag changes.
type LogRenderer struct {
	mu   sync.Mutex
	last string
}

func NewLogRenderer() *LogRenderer { return &LogRenderer{} }

func (r *LogRenderer) Render(s bot.Snapshot) {
	key := fmt.Sprintf("%s|%v|%s|%v", s.State, s.Halted, s.Target.Label, s.HasTarget)
	r.mu.Lock()
	changed := key != r.last
	r.last = key
	r.mu.Unlock()
	if changed {
		log.Printf("Status: %s", logutil.Sanitize(s.String()))
	}
}

func (r *LogRenderer) Close() error { return nil }

// Multi fans a snapshot out to several renderers.
type Multi []Renderer

func (m Multi) Render(s bot.Snapshot) {
	for _, r := range m {
		r.Render(s)
	}
}

func (m Multi) Close() error {
	var errs []string
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close renderers: %s", strings.Join(errs, "; "))
	}
	return nil
}
