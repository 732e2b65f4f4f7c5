package hotkey

import (
	"log"
	"strconv"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// CornerSize is how close to the top-left screen corner, in pixels, the pointer has to
// be to trip the failsafe.
const CornerSize = 2

// Binding is a key combination and the callback fired when all of its keys are down.
type Binding struct {
	Name     string
	Combo    string
	Callback func()
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// matcher tracks one combination across key events.
type matcher struct {
	binding Binding
	keys    []keyState
}

func newMatcher(b Binding) (*matcher, bool) {
	m := &matcher{binding: b}
	for _, keyName := range parseHotkey(b.Combo) {
		rawcodes := keyNameToRawcodes(keyName)
		if len(rawcodes) == 0 {
			log.Printf("ERROR: Cannot map key '%s' to rawcodes, hotkey %s may not work correctly", keyName, b.Name)
			continue
		}
		m.keys = append(m.keys, keyState{name: keyName, rawcodes: rawcodes})
	}
	return m, len(m.keys) > 0
}

// handle updates key state and reports whether the combination just completed.
func (m *matcher) handle(kind uint8, rawcode uint16) bool {
	for i := range m.keys {
		for _, rc := range m.keys[i].rawcodes {
			if rc == rawcode {
				m.keys[i].pressed = kind == gohook.KeyDown
				break
			}
		}
	}
	if kind != gohook.KeyDown {
		return false
	}
	for _, k := range m.keys {
		if !k.pressed {
			return false
		}
	}
	for i := range m.keys {
		m.keys[i].pressed = false
	}
	return true
}

// Listener watches global input through gohook. It fires key combination bindings and,
// when enabled, the failsafe callback on a pointer slammed into the top-left corner.
type Listener struct {
	mu       sync.Mutex
	matchers []*matcher
	onCorner func()
	inCorner bool
	started  bool
	finished chan struct{}
}

func NewListener() *Listener {
	return &Listener{}
}

// Bind registers a combination like "Ctrl+Alt+X". Invalid combinations are logged and
// ignored.
func (l *Listener) Bind(b Binding) {
	m, ok := newMatcher(b)
	if !ok {
		log.Printf("ERROR: No valid keys in hotkey configuration '%s'", b.Combo)
		return
	}
	l.mu.Lock()
	l.matchers = append(l.matchers, m)
	l.mu.Unlock()
	log.Printf("Hotkey %s configured for: %s", b.Name, b.Combo)
}

// OnCorner sets the failsafe corner callback. It fires once per entry into the corner.
func (l *Listener) OnCorner(cb func()) {
	l.mu.Lock()
	l.onCorner = cb
	l.mu.Unlock()
}

// Start begins listening on a background goroutine.
func (l *Listener) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.finished = make(chan struct{})
	l.mu.Unlock()

	go func() {
		defer close(l.finished)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}
		for ev := range evChan {
			l.dispatch(ev)
		}
		log.Printf("Event channel closed")
	}()
}

// Stop ends the gohook session started by Start.
func (l *Listener) Stop() {
	l.mu.Lock()
	started := l.started
	l.started = false
	l.mu.Unlock()
	if !started {
		return
	}
	gohook.End()
	<-l.finished
}

// dispatch routes one hook event. Callbacks run outside the lock.
func (l *Listener) dispatch(ev gohook.Event) {
	var fire []func()

	l.mu.Lock()
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyUp:
		for _, m := range l.matchers {
			if m.handle(ev.Kind, ev.Rawcode) {
				log.Printf("Hotkey %s activated", m.binding.Name)
				if m.binding.Callback != nil {
					fire = append(fire, m.binding.Callback)
				}
			}
		}
	case gohook.MouseMove, gohook.MouseDrag:
		corner := int(ev.X) <= CornerSize && int(ev.Y) <= CornerSize && ev.X >= 0 && ev.Y >= 0
		if corner && !l.inCorner && l.onCorner != nil {
			log.Printf("Pointer entered failsafe corner at %d,%d", ev.X, ev.Y)
			fire = append(fire, l.onCorner)
		}
		l.inCorner = corner
	}
	l.mu.Unlock()

	for _, cb := range fire {
		cb()
	}
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

var specialKeys = map[string][]uint16{
	// Modifiers report left and right variants.
	"ctrl":  {162, 163},
	"alt":   {164, 165},
	"shift": {160, 161},
	"cmd":   {91, 92},

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to its Windows virtual key code rawcodes.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}
	if keyName == "win" || keyName == "super" {
		return specialKeys["cmd"]
	}
	if len(keyName) == 1 {
		c := keyName[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}
		}
	}
	return nil
}
