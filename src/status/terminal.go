package status

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"asteroid-miner/src/bot"
)

const footer = "[s] start/stop  [c] copy overview  [q] quit"

// TerminalRenderer draws the status on a full-screen tcell display and maps keys to
// actions.
type TerminalRenderer struct {
	screen  tcell.Screen
	actions Actions

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewTerminalRenderer takes over the terminal.
func NewTerminalRenderer(actions Actions) (*TerminalRenderer, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal screen: %w", err)
	}
	return newTerminalRenderer(s, actions), nil
}

// newTerminalRenderer wraps an initialized screen.
func newTerminalRenderer(s tcell.Screen, actions Actions) *TerminalRenderer {
	t := &TerminalRenderer{screen: s, actions: actions, done: make(chan struct{})}
	s.Clear()
	s.Show()
	go t.pollEvents()
	return t
}

func (t *TerminalRenderer) pollEvents() {
	defer close(t.done)
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			t.handleKey(ev)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

func (t *TerminalRenderer) handleKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		t.actions.OnQuit()
	case tcell.KeyRune:
		switch ev.Rune() {
		case 's', 'S', ' ':
			t.actions.OnToggle()
		case 'c', 'C':
			t.actions.OnCopy()
		case 'q', 'Q':
			t.actions.OnQuit()
		}
	}
}

func (t *TerminalRenderer) Render(s bot.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.screen.Clear()
	_, height := t.screen.Size()
	lines := Lines(s)
	for y, line := range lines {
		if y >= height-1 {
			break
		}
		style := tcell.StyleDefault
		switch {
		case y == 0:
			style = style.Bold(true)
		case s.Halted && y == 1:
			style = style.Foreground(tcell.ColorRed).Bold(true)
		}
		drawText(t.screen, 0, y, line, style)
	}
	if height > 0 {
		drawText(t.screen, 0, height-1, footer, tcell.StyleDefault.Foreground(tcell.ColorYellow))
	}
	t.screen.Show()
}

// Close restores the terminal.
func (t *TerminalRenderer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.screen.Fini()
	<-t.done
	return nil
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	width, _ := s.Size()
	for _, r := range text {
		if x >= width {
			return
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
