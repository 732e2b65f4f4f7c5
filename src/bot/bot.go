// Package bot implements the mining state machine: scan the Overview for an asteroid,
// approach it, lock it, start the mining modules and wait for it to deplete.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"asteroid-miner/src/input"
	"asteroid-miner/src/logutil"
	"asteroid-miner/src/overview"
	"asteroid-miner/src/screenshot"
)

var (
	// ErrHostileDetected stops the bot when a hostile or another player is on the Overview.
	ErrHostileDetected = errors.New("hostile detected")
	// ErrHalted is returned by Step until Reset is called.
	ErrHalted = errors.New("bot halted")
)

// Overview is the vision capability the bot polls.
type Overview interface {
	ReadOverview(ctx context.Context) ([]overview.Row, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	Classifier      overview.Classifier
	ApproachKey     string
	LockKey         string
	ActivationKeys  []string
	StopCombo       []string
	LockRangeMeters float64
	LockSettle      time.Duration
	SafeSpot        screenshot.Point
	// LostTargetPolls is how many consecutive polls the Target may be missing during
	// mining before it counts as depleted.
	LostTargetPolls int
	Sleep           SleepFunc
}

func DefaultOptions() Options {
	return Options{
		Classifier:      overview.NewClassifier(),
		ApproachKey:     "q",
		LockKey:         "ctrl",
		ActivationKeys:  []string{"f1", "f2"},
		StopCombo:       []string{"ctrl", "space"},
		LockRangeMeters: 15000,
		LockSettle:      2 * time.Second,
		SafeSpot:        screenshot.Point{X: 200, Y: 200},
		LostTargetPolls: 1,
	}
}

// Bot is the mining state machine. Step, Run and Reset must be called from one
// goroutine; Snapshot is safe from any.
type Bot struct {
	opts   Options
	vision Overview
	ctrl   input.Controller

	state        State
	target       *Target
	approachSent bool
	lost         int
	halted       bool
	haltReason   string
	lastErr      error
	ticks        int
	rows         []overview.Row

	mu       sync.Mutex
	snapshot Snapshot
}

func New(opts Options, vision Overview, ctrl input.Controller) *Bot {
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.LostTargetPolls < 1 {
		opts.LostTargetPolls = 1
	}
	b := &Bot{opts: opts, vision: vision, ctrl: ctrl}
	b.publish()
	return b
}

// Sleep waits for d, returning early with ctx.Err() when ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Step performs one poll: read the Overview, run the hostile check, then the handler for
// the current state. Read failures count as an empty Overview.
func (b *Bot) Step(ctx context.Context) (err error) {
	defer b.publish()

	if b.halted {
		return fmt.Errorf("%w: %s", ErrHalted, b.haltReason)
	}
	b.ticks++

	rows, readErr := b.vision.ReadOverview(ctx)
	if readErr != nil {
		log.Printf("Bot: Overview read failed, treating as empty: %v", readErr)
		rows = nil
	}
	b.rows = rows
	b.lastErr = readErr

	// Checked before any state handler so no input is issued with a hostile on grid.
	if row, ok := b.opts.Classifier.FindHostile(rows); ok {
		b.target = nil
		b.halt("hostile on overview: " + logutil.Sanitize(row.Text))
		return fmt.Errorf("%w: %q", ErrHostileDetected, row.Text)
	}

	switch b.state {
	case StateIdleScanning:
		err = b.scan(rows)
	case StateApproaching:
		err = b.approach(rows)
	case StateLocking:
		err = b.lock(ctx, rows)
	case StateMiningStart:
		err = b.startMining(rows)
	case StateMiningLoop:
		b.mine(rows)
	}

	if err != nil {
		b.lastErr = err
		if errors.Is(err, input.ErrFailsafe) {
			b.halt("failsafe")
		}
	}
	return err
}

// Run steps the bot every interval until it halts or ctx is cancelled.
func (b *Bot) Run(ctx context.Context, interval time.Duration) error {
	for {
		if err := b.Step(ctx); err != nil {
			if b.halted {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("ERROR: Bot step failed: %v", err)
		}
		if err := b.opts.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// Reset clears the halt flag and any Target and returns to IDLE_SCANNING.
func (b *Bot) Reset() {
	b.state = StateIdleScanning
	b.target = nil
	b.approachSent = false
	b.lost = 0
	b.halted = false
	b.haltReason = ""
	b.lastErr = nil
	b.publish()
	log.Printf("Bot: reset to %s", b.state)
}

func (b *Bot) State() State { return b.state }

func (b *Bot) Halted() bool { return b.halted }

// Target returns a copy of the current Target.
func (b *Bot) Target() (Target, bool) {
	if b.target == nil {
		return Target{}, false
	}
	return *b.target, true
}

// Snapshot returns the state published after the last Step.
func (b *Bot) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.snapshot
	s.Rows = append([]overview.Row(nil), s.Rows...)
	return s
}

func (b *Bot) publish() {
	s := Snapshot{
		State:      b.state,
		Halted:     b.halted,
		HaltReason: b.haltReason,
		Ticks:      b.ticks,
		Rows:       append([]overview.Row(nil), b.rows...),
		At:         time.Now(),
	}
	if b.target != nil {
		s.Target, s.HasTarget = *b.target, true
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	b.mu.Lock()
	b.snapshot = s
	b.mu.Unlock()
}

func (b *Bot) halt(reason string) {
	b.halted = true
	b.haltReason = reason
	log.Printf("Bot: HALT in %s: %s", b.state, reason)
}

func (b *Bot) setState(next State, why string) {
	log.Printf("Bot: %s -> %s (%s)", b.state, next, why)
	b.state = next
}

func (b *Bot) scan(rows []overview.Row) error {
	row, ok := b.opts.Classifier.FindAsteroid(rows)
	if !ok {
		log.Printf("DEBUG: Bot: no asteroid among %d rows", len(rows))
		return nil
	}
	t := &Target{
		Label: row.Label(),
		Ore:   b.opts.Classifier.OreName(row),
		Pos:   screenshot.Point{X: row.Center().X, Y: row.Center().Y},
	}
	t.Distance, _ = row.Distance()
	b.target = t
	b.approachSent = false
	b.lost = 0
	b.setState(StateApproaching, "target "+logutil.Sanitize(row.Text))
	return nil
}

func (b *Bot) approach(rows []overview.Row) error {
	if !b.track(rows, true) {
		return nil
	}
	log.Printf("Bot: target distance %s", b.target.Distance)

	if b.target.Distance.InRange(b.opts.LockRangeMeters) {
		b.setState(StateLocking, "in range "+b.target.Distance.String())
		return nil
	}
	if b.approachSent {
		return nil
	}
	err := b.sequence(func() error {
		return input.HoldAndClick(b.ctrl, b.opts.ApproachKey, b.target.Pos)
	})
	if err != nil {
		return fmt.Errorf("approach: %w", err)
	}
	b.approachSent = true
	log.Printf("Bot: approach command sent, waiting to reach range")
	return nil
}

func (b *Bot) lock(ctx context.Context, rows []overview.Row) error {
	if !b.track(rows, true) {
		return nil
	}
	err := b.sequence(func() error {
		return input.HoldAndClick(b.ctrl, b.opts.LockKey, b.target.Pos)
	})
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	log.Printf("Bot: waiting %v for lock to settle", b.opts.LockSettle)
	if err := b.opts.Sleep(ctx, b.opts.LockSettle); err != nil {
		return fmt.Errorf("lock settle: %w", err)
	}
	b.setState(StateMiningStart, "lock issued")
	return nil
}

func (b *Bot) startMining(rows []overview.Row) error {
	if !b.track(rows, true) {
		return nil
	}
	err := b.sequence(func() error {
		for _, k := range b.opts.ActivationKeys {
			if err := input.Tap(b.ctrl, k); err != nil {
				return err
			}
		}
		return input.Combo(b.ctrl, b.opts.StopCombo...)
	})
	if err != nil {
		return fmt.Errorf("start mining: %w", err)
	}
	b.lost = 0
	b.setState(StateMiningLoop, "modules active")
	return nil
}

func (b *Bot) mine(rows []overview.Row) {
	if row, ok := b.locate(rows, false); ok {
		b.lost = 0
		b.refresh(row)
		return
	}
	b.lost++
	if b.lost < b.opts.LostTargetPolls {
		log.Printf("Bot: target %q missing (%d/%d)", b.target.Label, b.lost, b.opts.LostTargetPolls)
		return
	}
	log.Printf("Bot: target %q depleted", b.target.Label)
	b.target = nil
	b.lost = 0
	b.setState(StateIdleScanning, "target gone")
}

// sequence runs an input sequence and parks the pointer afterwards, even on failure.
func (b *Bot) sequence(f func() error) error {
	err := f()
	if perr := input.Park(b.ctrl, b.opts.SafeSpot); perr != nil && err == nil {
		err = perr
	}
	return err
}

// track refreshes the Target from rows, or drops it and returns to IDLE_SCANNING.
func (b *Bot) track(rows []overview.Row, byOre bool) bool {
	row, ok := b.locate(rows, byOre)
	if !ok {
		log.Printf("Bot: target %q not on overview", b.target.Label)
		b.target = nil
		b.setState(StateIdleScanning, "target lost")
		return false
	}
	b.refresh(row)
	return true
}

// locate finds the Target's row by label, falling back to its ore when byOre is set.
// Among several matches the row nearest the last known position wins.
func (b *Bot) locate(rows []overview.Row, byOre bool) (overview.Row, bool) {
	if b.target == nil {
		return overview.Row{}, false
	}
	c := b.opts.Classifier
	match := func(pred func(overview.Row) bool) (overview.Row, bool) {
		var best overview.Row
		found := false
		for _, r := range rows {
			if !c.IsAsteroid(r) || !pred(r) {
				continue
			}
			if !found || absInt(r.Center().Y-b.target.Pos.Y) < absInt(best.Center().Y-b.target.Pos.Y) {
				best, found = r, true
			}
		}
		return best, found
	}
	if r, ok := match(func(r overview.Row) bool { return strings.EqualFold(r.Label(), b.target.Label) }); ok {
		return r, true
	}
	if byOre && b.target.Ore != "" {
		return match(func(r overview.Row) bool { return c.OreName(r) == b.target.Ore })
	}
	return overview.Row{}, false
}

func (b *Bot) refresh(row overview.Row) {
	b.target.Pos = screenshot.Point{X: row.Center().X, Y: row.Center().Y}
	if d, ok := row.Distance(); ok {
		b.target.Distance = d
	} else {
		b.target.Distance = overview.Distance{}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
