package status

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"asteroid-miner/src/bot"
	"asteroid-miner/src/overview"
)

func sampleSnapshot() bot.Snapshot {
	return bot.Snapshot{
		State:     bot.StateApproaching,
		HasTarget: true,
		Target: bot.Target{
			Label:    "Asteroid (Veldspar)",
			Distance: overview.Distance{Value: 24, Unit: "km", Meters: 24000},
		},
		Ticks: 7,
		Rows:  []overview.Row{{Text: "Asteroid (Veldspar) 24 km"}},
	}
}

func TestLines(t *testing.T) {
	lines := Lines(sampleSnapshot())
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"State:  APPROACHING", "Target: Asteroid (Veldspar) (24 km)", "Ticks:  7", "  Asteroid (Veldspar) 24 km"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Lines missing %q:\n%s", want, joined)
		}
	}

	halted := bot.Snapshot{Halted: true, HaltReason: "hostile on overview"}
	lines = Lines(halted)
	if lines[1] != "HALTED: hostile on overview" {
		t.Errorf("halt line = %q", lines[1])
	}
	if !strings.Contains(strings.Join(lines, "\n"), "(empty)") {
		t.Error("Expected empty overview marker")
	}
}

func TestTooltip(t *testing.T) {
	tests := []struct {
		name string
		snap bot.Snapshot
		want string
	}{
		{"target", sampleSnapshot(), "Miner: APPROACHING 24 km"},
		{"idle", bot.Snapshot{}, "Miner: IDLE_SCANNING"},
		{"halted", bot.Snapshot{Halted: true, HaltReason: "failsafe"}, "Miner: HALTED - failsafe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tooltip(tt.snap); got != tt.want {
				t.Errorf("Tooltip = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTerminalRendererDrawsAndMapsKeys(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Skipf("simulation screen unavailable: %v", err)
	}
	screen.SetSize(80, 24)

	var toggles, copies, quits int
	r := newTerminalRenderer(screen, Actions{
		Toggle: func() { toggles++ },
		Copy:   func() { copies++ },
		Quit:   func() { quits++ },
	})

	r.Render(sampleSnapshot())
	title := ""
	for x := 0; x < len("Asteroid Miner"); x++ {
		ch, _, _, _ := screen.GetContent(x, 0)
		title += string(ch)
	}
	if title != "Asteroid Miner" {
		t.Errorf("Expected title on row 0, got %q", title)
	}

	r.handleKey(tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone))
	r.handleKey(tcell.NewEventKey(tcell.KeyRune, 'c', tcell.ModNone))
	r.handleKey(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	r.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	if toggles != 1 || copies != 1 || quits != 1 {
		t.Errorf("toggles=%d copies=%d quits=%d", toggles, copies, quits)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	r.Render(sampleSnapshot())
	_ = r.Close()
}

func TestLogRendererAndMulti(t *testing.T) {
	lr := NewLogRenderer()
	m := Multi{lr, lr}
	m.Render(sampleSnapshot())
	m.Render(sampleSnapshot())
	if lr.last == "" {
		t.Error("Expected LogRenderer to remember the last state")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
