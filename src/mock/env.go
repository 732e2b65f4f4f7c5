package mock

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"asteroid-miner/src/overview"
	"asteroid-miner/src/screenshot"
)

const (
	RowHeight = 20
	RowWidth  = 400
)

// Keys tells the Env which keys mean what in the simulated client.
type Keys struct {
	Approach   string
	Lock       string
	Activation []string
	StopCombo  []string
}

func DefaultKeys() Keys {
	return Keys{
		Approach:   "q",
		Lock:       "ctrl",
		Activation: []string{"f1", "f2"},
		StopCombo:  []string{"ctrl", "space"},
	}
}

// Event is one input call received by the Env.
type Event struct {
	Kind string // "down", "up", "move" or "click"
	Key  string
	X, Y int
}

func (e Event) String() string {
	switch e.Kind {
	case "down", "up":
		return e.Kind + " " + e.Key
	default:
		return fmt.Sprintf("%s %d,%d", e.Kind, e.X, e.Y)
	}
}

// Env stands in for the game client. It reads the World as Overview rows laid out from
// Origin and turns input calls into World actions. Every read advances the World by one
// tick.
type Env struct {
	World  *World
	Keys   Keys
	Origin image.Point

	mu      sync.Mutex
	held    map[string]bool
	pointer screenshot.Point
	events  []Event
	failN   int
}

func NewEnv(world *World, keys Keys) *Env {
	return &Env{
		World:  world,
		Keys:   keys,
		Origin: image.Pt(800, 100),
		held:   make(map[string]bool),
	}
}

// FailReads makes the next n reads return an error, as an OCR failure would.
func (e *Env) FailReads(n int) {
	e.mu.Lock()
	e.failN = n
	e.mu.Unlock()
}

// ReadOverview ticks the World and returns its rows.
func (e *Env) ReadOverview(ctx context.Context) ([]overview.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	fail := e.failN > 0
	if fail {
		e.failN--
	}
	e.mu.Unlock()

	e.World.Tick()
	if fail {
		return nil, fmt.Errorf("mock: simulated OCR failure")
	}
	return e.Rows(), nil
}

// Rows renders the World without advancing it.
func (e *Env) Rows() []overview.Row {
	lines := e.World.Lines()
	rows := make([]overview.Row, len(lines))
	for i, text := range lines {
		top := e.Origin.Y + i*RowHeight
		rows[i] = overview.Row{
			Text: text,
			Box:  image.Rect(e.Origin.X, top, e.Origin.X+RowWidth, top+RowHeight),
		}
	}
	return rows
}

// RowAt maps a screen point to an Overview row index, or -1.
func (e *Env) RowAt(x, y int) int {
	if x < e.Origin.X || x >= e.Origin.X+RowWidth || y < e.Origin.Y {
		return -1
	}
	return (y - e.Origin.Y) / RowHeight
}

func (e *Env) KeyDown(key string) error {
	key = strings.ToLower(key)
	e.mu.Lock()
	e.held[key] = true
	e.events = append(e.events, Event{Kind: "down", Key: key})
	stop := e.allHeld(e.Keys.StopCombo)
	e.mu.Unlock()

	for i, k := range e.Keys.Activation {
		if strings.EqualFold(k, key) {
			e.World.Activate(i)
		}
	}
	if stop {
		e.World.StopShip()
	}
	return nil
}

func (e *Env) KeyUp(key string) error {
	key = strings.ToLower(key)
	e.mu.Lock()
	delete(e.held, key)
	e.events = append(e.events, Event{Kind: "up", Key: key})
	e.mu.Unlock()
	return nil
}

func (e *Env) Move(x, y int) error {
	e.mu.Lock()
	e.pointer = screenshot.Point{X: x, Y: y}
	e.events = append(e.events, Event{Kind: "move", X: x, Y: y})
	e.mu.Unlock()
	return nil
}

func (e *Env) Click(x, y int) error {
	e.mu.Lock()
	e.pointer = screenshot.Point{X: x, Y: y}
	e.events = append(e.events, Event{Kind: "click", X: x, Y: y})
	approach := e.held[strings.ToLower(e.Keys.Approach)]
	lock := e.held[strings.ToLower(e.Keys.Lock)]
	e.mu.Unlock()

	row := e.RowAt(x, y)
	if row < 0 {
		return nil
	}
	if approach {
		e.World.Approach(row)
	}
	if lock {
		e.World.Lock(row)
	}
	return nil
}

// Events returns a copy of every input call so far.
func (e *Env) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

// Pointer is where the last move or click left the pointer.
func (e *Env) Pointer() screenshot.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pointer
}

// Held reports whether key is currently down.
func (e *Env) Held(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.held[strings.ToLower(key)]
}

func (e *Env) allHeld(keys []string) bool {
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !e.held[strings.ToLower(k)] {
			return false
		}
	}
	return true
}
