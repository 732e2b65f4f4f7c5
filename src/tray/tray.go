// Package tray shows the bot's status in the system tray and offers Start/Stop, Copy
// overview and Quit.
package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log"
	"sync"

	"github.com/getlantern/systray"

	"asteroid-miner/src/bot"
	"asteroid-miner/src/status"
)

// Tray is a status.Renderer backed by the system tray. Run must be called from the
// main goroutine.
type Tray struct {
	actions status.Actions

	mu      sync.Mutex
	ready   bool
	tooltip string
	running bool
	halted  bool
	toggle  *systray.MenuItem
}

func New(actions status.Actions) *Tray {
	return &Tray{actions: actions, tooltip: "Miner: starting"}
}

// Run blocks running the tray until Quit. onReady runs once the menu exists.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		t.onReady()
		if onReady != nil {
			onReady()
		}
	}, func() {
		log.Printf("Tray exited")
	})
}

func (t *Tray) onReady() {
	systray.SetIcon(Icon(false))
	systray.SetTitle("Asteroid Miner")

	toggle := systray.AddMenuItem(toggleTitle(false), "Start or stop the mining loop")
	mCopy := systray.AddMenuItem("Copy overview", "Copy the last Overview read to the clipboard")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	t.mu.Lock()
	t.ready = true
	t.toggle = toggle
	t.apply()
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-toggle.ClickedCh:
				t.actions.OnToggle()
			case <-mCopy.ClickedCh:
				t.actions.OnCopy()
			case <-mQuit.ClickedCh:
				t.actions.OnQuit()
				return
			}
		}
	}()
}

// Render updates the tooltip, icon and toggle label.
func (t *Tray) Render(s bot.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tooltip := status.Tooltip(s)
	if tooltip == t.tooltip && s.Running == t.running && s.Halted == t.halted {
		return
	}
	iconChanged := s.Halted != t.halted
	t.tooltip, t.running, t.halted = tooltip, s.Running, s.Halted
	if !t.ready {
		return
	}
	t.apply()
	if iconChanged {
		systray.SetIcon(Icon(s.Halted))
	}
}

// apply pushes the cached state to the tray. Caller holds t.mu.
func (t *Tray) apply() {
	systray.SetTooltip(t.tooltip)
	if t.toggle != nil {
		t.toggle.SetTitle(toggleTitle(t.running))
	}
}

// Close removes the tray icon.
func (t *Tray) Close() error {
	systray.Quit()
	return nil
}

func toggleTitle(running bool) string {
	if running {
		return "Stop mining"
	}
	return "Start mining"
}

// Icon renders a 16x16 PNG: an orange asteroid, or red when halted.
func Icon(halted bool) []byte {
	fill := color.RGBA{R: 0xd9, G: 0x8c, B: 0x3a, A: 0xff}
	if halted {
		fill = color.RGBA{R: 0xd0, G: 0x20, B: 0x20, A: 0xff}
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			dx, dy := float64(x)-7.5, float64(y)-7.5
			if dx*dx+dy*dy <= 49 {
				img.Set(x, y, fill)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Printf("ERROR: Failed to encode tray icon: %v", err)
		return nil
	}
	return buf.Bytes()
}
