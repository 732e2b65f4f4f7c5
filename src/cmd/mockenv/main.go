// Command mockenv shows a simulated asteroid belt as an Overview panel, so the real
// capture, OCR and input stack can be pointed at it without the game.
package main

import (
	"flag"
	"log"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"asteroid-miner/src/mock"
)

// rowLabel is an Overview row that reports taps.
type rowLabel struct {
	widget.Label
	index int
	onTap func(int)
}

func newRowLabel(index int, onTap func(int)) *rowLabel {
	r := &rowLabel{index: index, onTap: onTap}
	r.ExtendBaseWidget(r)
	return r
}

func (r *rowLabel) Tapped(*fyne.PointEvent) {
	if r.onTap != nil {
		r.onTap(r.index)
	}
}

// keyName maps fyne key names to the names the bot sends.
func keyName(k fyne.KeyName) string {
	switch k {
	case desktop.KeyControlLeft, desktop.KeyControlRight:
		return "ctrl"
	case desktop.KeyShiftLeft, desktop.KeyShiftRight:
		return "shift"
	case desktop.KeyAltLeft, desktop.KeyAltRight:
		return "alt"
	case fyne.KeySpace:
		return "space"
	case fyne.KeyEscape:
		return "escape"
	}
	return strings.ToLower(string(k))
}

// panel binds the window to a mock Env.
type panel struct {
	env    *mock.Env
	rows   []*rowLabel
	status *widget.Label
}

func (p *panel) refresh() {
	lines := p.env.World.Lines()
	for i, r := range p.rows {
		text := ""
		if i < len(lines) {
			text = lines[i]
		}
		r.SetText(text)
	}
	state := "idle"
	switch {
	case p.env.World.Mining():
		state = "mining " + p.env.World.Locked()
	case p.env.World.Moving():
		state = "approaching"
	case p.env.World.Locked() != "":
		state = "locked " + p.env.World.Locked()
	}
	p.status.SetText("Ship: " + state)
}

// tap clicks the centre of Overview row i with whatever keys are held.
func (p *panel) tap(i int) {
	rows := p.env.Rows()
	if i >= len(rows) {
		return
	}
	c := rows[i].Center()
	if err := p.env.Click(c.X, c.Y); err != nil {
		log.Printf("mockenv: click failed: %v", err)
	}
	p.refresh()
}

func main() {
	tick := flag.Duration("tick", time.Second, "Simulation tick")
	hostileAfter := flag.Duration("hostile-after", 0, "Put a hostile on the Overview after this long (0 = never)")
	flag.Parse()

	world := mock.NewWorld(mock.WorldOptions{}, mock.DefaultBelt()...)
	env := mock.NewEnv(world, mock.DefaultKeys())

	a := app.New()
	w := a.NewWindow("Overview")

	p := &panel{env: env, status: widget.NewLabel("")}
	list := container.NewVBox()
	for i := 0; i < len(world.Lines())+1; i++ {
		r := newRowLabel(i, p.tap)
		p.rows = append(p.rows, r)
		list.Add(r)
	}
	hostile := widget.NewButton("Spawn hostile", func() {
		world.SetHostile("Hostile Frigate")
		p.refresh()
	})
	w.SetContent(container.NewBorder(nil, container.NewVBox(p.status, hostile), nil, nil, list))
	w.Resize(fyne.NewSize(mock.RowWidth, 300))

	if dc, ok := w.Canvas().(desktop.Canvas); ok {
		dc.SetOnKeyDown(func(ev *fyne.KeyEvent) {
			_ = env.KeyDown(keyName(ev.Name))
			p.refresh()
		})
		dc.SetOnKeyUp(func(ev *fyne.KeyEvent) {
			_ = env.KeyUp(keyName(ev.Name))
		})
	}

	go func() {
		ticker := time.NewTicker(*tick)
		defer ticker.Stop()
		started := time.Now()
		for range ticker.C {
			world.Tick()
			if *hostileAfter > 0 && time.Since(started) >= *hostileAfter {
				world.SetHostile("Hostile Frigate")
			}
			fyne.Do(p.refresh)
		}
	}()

	p.refresh()
	w.ShowAndRun()
}
