// Package mock simulates an asteroid belt and the client window around it, so the bot
// can run a full mining cycle without the game.
package mock

import (
	"fmt"
	"log"
	"strconv"
	"sync"
)

// Asteroid is one minable rock in the simulated belt.
type Asteroid struct {
	Name     string
	Ore      string
	Distance float64 // meters
	Yield    int
}

// WorldOptions tunes the simulation. Zero values take the defaults.
type WorldOptions struct {
	// ApproachSpeed is how many meters the ship closes per tick while approaching.
	ApproachSpeed float64
	// MineRate is how much yield one tick of mining removes.
	MineRate int
	// LockRange is the largest distance at which a lock succeeds.
	LockRange float64
	// Modules is how many mining modules must be active for mining to run.
	Modules int
	// MinDistance is where the ship stops closing in on its target.
	MinDistance float64
}

func (o WorldOptions) withDefaults() WorldOptions {
	if o.ApproachSpeed <= 0 {
		o.ApproachSpeed = 5000
	}
	if o.MineRate <= 0 {
		o.MineRate = 1
	}
	if o.LockRange <= 0 {
		o.LockRange = 20000
	}
	if o.Modules <= 0 {
		o.Modules = 2
	}
	if o.MinDistance <= 0 {
		o.MinDistance = 2000
	}
	return o
}

// World is the simulated belt. It is safe for concurrent use.
type World struct {
	opts WorldOptions

	mu          sync.Mutex
	asteroids   []*Asteroid
	hostile     string
	approaching *Asteroid
	moving      bool
	locked      *Asteroid
	modules     []bool
	mined       map[string]int
	ticks       int
}

func NewWorld(opts WorldOptions, asteroids ...Asteroid) *World {
	w := &World{opts: opts.withDefaults(), mined: make(map[string]int)}
	w.modules = make([]bool, w.opts.Modules)
	for _, a := range asteroids {
		a := a
		w.asteroids = append(w.asteroids, &a)
	}
	return w
}

// DefaultBelt is a small belt with two ores, used by the mock window and tests.
func DefaultBelt() []Asteroid {
	return []Asteroid{
		{Name: "Veldspar Asteroid 1", Ore: "Veldspar", Distance: 24000, Yield: 3},
		{Name: "Scordite Asteroid 2", Ore: "Scordite", Distance: 31000, Yield: 4},
		{Name: "Veldspar Asteroid 3", Ore: "Veldspar", Distance: 45000, Yield: 2},
	}
}

// SetHostile puts a hostile on the Overview, or clears it when name is empty.
func (w *World) SetHostile(name string) {
	w.mu.Lock()
	w.hostile = name
	w.mu.Unlock()
}

// Lines renders the Overview, one entry per line, asteroids first in belt order.
func (w *World) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	lines := make([]string, 0, len(w.asteroids)+1)
	for _, a := range w.asteroids {
		lines = append(lines, fmt.Sprintf("%s %s", a.Name, FormatDistance(a.Distance)))
	}
	if w.hostile != "" {
		lines = append(lines, w.hostile+" 30 km")
	}
	return lines
}

// Approach starts moving towards the asteroid at Overview index i.
func (w *World) Approach(i int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.at(i)
	if a == nil {
		return false
	}
	w.approaching, w.moving = a, true
	log.Printf("DEBUG: Mock: approaching %s", a.Name)
	return true
}

// Lock targets the asteroid at Overview index i if it is within lock range.
func (w *World) Lock(i int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.at(i)
	if a == nil || a.Distance > w.opts.LockRange {
		return false
	}
	if w.locked != a {
		w.resetModules()
	}
	w.locked = a
	log.Printf("DEBUG: Mock: locked %s", a.Name)
	return true
}

// Activate switches on mining module n. Modules only cycle with a target locked.
func (w *World) Activate(n int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked == nil || n < 0 || n >= len(w.modules) {
		return false
	}
	w.modules[n] = true
	return true
}

// StopShip halts any approach.
func (w *World) StopShip() {
	w.mu.Lock()
	w.moving = false
	w.mu.Unlock()
}

// Tick advances the simulation by one step.
func (w *World) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ticks++

	if w.moving && w.approaching != nil {
		w.approaching.Distance = max(w.approaching.Distance-w.opts.ApproachSpeed, w.opts.MinDistance)
	}
	if !w.miningLocked() {
		return
	}
	a := w.locked
	a.Yield -= w.opts.MineRate
	w.mined[a.Ore] += w.opts.MineRate
	if a.Yield > 0 {
		return
	}
	log.Printf("DEBUG: Mock: %s depleted", a.Name)
	w.remove(a)
}

// Mining reports whether every module is cycling on a locked asteroid.
func (w *World) Mining() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.miningLocked()
}

// Locked returns the name of the locked asteroid, or "".
func (w *World) Locked() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked == nil {
		return ""
	}
	return w.locked.Name
}

// Moving reports whether the ship is under way.
func (w *World) Moving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.moving
}

// Mined returns the total yield extracted per ore.
func (w *World) Mined() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.mined))
	for k, v := range w.mined {
		out[k] = v
	}
	return out
}

// Remaining is the number of asteroids left in the belt.
func (w *World) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.asteroids)
}

func (w *World) at(i int) *Asteroid {
	if i < 0 || i >= len(w.asteroids) {
		return nil
	}
	return w.asteroids[i]
}

func (w *World) miningLocked() bool {
	if w.locked == nil {
		return false
	}
	for _, on := range w.modules {
		if !on {
			return false
		}
	}
	return true
}

func (w *World) resetModules() {
	for i := range w.modules {
		w.modules[i] = false
	}
}

func (w *World) remove(a *Asteroid) {
	for i, x := range w.asteroids {
		if x == a {
			w.asteroids = append(w.asteroids[:i], w.asteroids[i+1:]...)
			break
		}
	}
	if w.approaching == a {
		w.approaching, w.moving = nil, false
	}
	w.locked = nil
	w.resetModules()
}

// FormatDistance renders meters the way the Overview does: whole kilometers from 10 km,
// one decimal below that and plain meters under 1 km.
func FormatDistance(m float64) string {
	switch {
	case m >= 10000:
		return strconv.FormatFloat(m/1000, 'f', 0, 64) + " km"
	case m >= 1000:
		return strconv.FormatFloat(m/1000, 'f', 1, 64) + " km"
	default:
		return strconv.FormatFloat(m, 'f', 0, 64) + " m"
	}
}
