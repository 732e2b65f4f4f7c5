// Package input injects keyboard and mouse events. Every sequence the bot issues goes
// through a Controller, so tests and the mock environment can stand in for the real
// desktop.
package input

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"asteroid-miner/src/screenshot"
)

// ErrFailsafe is returned by a guarded controller once the user has taken over.
var ErrFailsafe = errors.New("input failsafe tripped")

// Controller is the input capability. Key names follow robotgo ("ctrl", "space", "f1").
type Controller interface {
	KeyDown(key string) error
	KeyUp(key string) error
	Move(x, y int) error
	Click(x, y int) error
}

// Failsafe is a one-way switch flipped by a user override. It is safe for concurrent use.
type Failsafe struct {
	tripped atomic.Bool
	reason  atomic.Value
}

// Trip marks the failsafe. Only the first reason is kept.
func (f *Failsafe) Trip(reason string) {
	if f.tripped.CompareAndSwap(false, true) {
		f.reason.Store(reason)
		log.Printf("Failsafe tripped: %s", reason)
	}
}

func (f *Failsafe) Tripped() bool { return f.tripped.Load() }

func (f *Failsafe) Reason() string {
	if r, ok := f.reason.Load().(string); ok {
		return r
	}
	return ""
}

// Reset re-arms the failsafe after the user restarts the loop.
func (f *Failsafe) Reset() {
	f.tripped.Store(false)
	f.reason.Store("")
}

// Guard wraps ctrl so every call fails with ErrFailsafe once f has tripped. KeyUp is
// always forwarded so a trip never leaves a key held down.
func Guard(ctrl Controller, f *Failsafe) Controller {
	return guarded{ctrl: ctrl, fs: f}
}

type guarded struct {
	ctrl Controller
	fs   *Failsafe
}

func (g guarded) check() error {
	if g.fs != nil && g.fs.Tripped() {
		return fmt.Errorf("%w: %s", ErrFailsafe, g.fs.Reason())
	}
	return nil
}

func (g guarded) KeyDown(key string) error {
	if err := g.check(); err != nil {
		return err
	}
	return g.ctrl.KeyDown(key)
}

func (g guarded) KeyUp(key string) error {
	return g.ctrl.KeyUp(key)
}

func (g guarded) Move(x, y int) error {
	if err := g.check(); err != nil {
		return err
	}
	return g.ctrl.Move(x, y)
}

func (g guarded) Click(x, y int) error {
	if err := g.check(); err != nil {
		return err
	}
	return g.ctrl.Click(x, y)
}

// Tap presses and releases key.
func Tap(ctrl Controller, key string) error {
	return Combo(ctrl, key)
}

// Combo presses keys in order and releases them in reverse. Keys already pressed are
// released even when a later press fails.
func Combo(ctrl Controller, keys ...string) error {
	var held []string
	var err error
	for _, k := range keys {
		if err = ctrl.KeyDown(k); err != nil {
			err = fmt.Errorf("key down %s: %w", k, err)
			break
		}
		held = append(held, k)
	}
	for i := len(held) - 1; i >= 0; i-- {
		if upErr := ctrl.KeyUp(held[i]); upErr != nil && err == nil {
			err = fmt.Errorf("key up %s: %w", held[i], upErr)
		}
	}
	return err
}

// HoldAndClick moves to pt and clicks it while key is held.
func HoldAndClick(ctrl Controller, key string, pt screenshot.Point) (err error) {
	if err := ctrl.Move(pt.X, pt.Y); err != nil {
		return fmt.Errorf("move to %d,%d: %w", pt.X, pt.Y, err)
	}
	if err := ctrl.KeyDown(key); err != nil {
		return fmt.Errorf("key down %s: %w", key, err)
	}
	defer func() {
		if upErr := ctrl.KeyUp(key); upErr != nil && err == nil {
			err = fmt.Errorf("key up %s: %w", key, upErr)
		}
	}()
	if err := ctrl.Click(pt.X, pt.Y); err != nil {
		return fmt.Errorf("click %d,%d: %w", pt.X, pt.Y, err)
	}
	return nil
}

// Park moves the pointer to the safe spot, off the Overview, so hover tooltips do not
// cover rows on the next read.
func Park(ctrl Controller, safe screenshot.Point) error {
	if err := ctrl.Move(safe.X, safe.Y); err != nil {
		return fmt.Errorf("park pointer: %w", err)
	}
	return nil
}
