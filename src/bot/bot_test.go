package bot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"reflect"
	"testing"
	"time"

	"asteroid-miner/src/input"
	"asteroid-miner/src/overview"
	"asteroid-miner/src/screenshot"
)

// scripted serves one row set per read and repeats the last one.
type scripted struct {
	frames [][]overview.Row
	errs   []error
	reads  int
}

func (s *scripted) ReadOverview(context.Context) ([]overview.Row, error) {
	n := s.reads
	s.reads++
	if n < len(s.errs) && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	return s.frames[min(n, len(s.frames)-1)], nil
}

func (s *scripted) push(rows ...overview.Row) { s.frames = append(s.frames, rows) }

type recorder struct{ events []string }

func (r *recorder) KeyDown(key string) error {
	r.events = append(r.events, "down "+key)
	return nil
}

func (r *recorder) KeyUp(key string) error {
	r.events = append(r.events, "up "+key)
	return nil
}

func (r *recorder) Move(x, y int) error {
	r.events = append(r.events, fmt.Sprintf("move %d,%d", x, y))
	return nil
}

func (r *recorder) Click(x, y int) error {
	r.events = append(r.events, fmt.Sprintf("click %d,%d", x, y))
	return nil
}

func row(text string, y int) overview.Row {
	return overview.Row{Text: text, Box: image.Rect(800, y, 1200, y+20)}
}

type harness struct {
	bot    *Bot
	view   *scripted
	rec    *recorder
	sleeps []time.Duration
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{view: &scripted{}, rec: &recorder{}}
	opts := DefaultOptions()
	opts.Sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.bot = New(opts, h.view, h.rec)
	return h
}

func (h *harness) step(t *testing.T) error {
	t.Helper()
	return h.bot.Step(context.Background())
}

func (h *harness) mustStep(t *testing.T, want State) {
	t.Helper()
	if err := h.step(t); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := h.bot.State(); got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdleScanning: "IDLE_SCANNING",
		StateApproaching:  "APPROACHING",
		StateLocking:      "LOCKING",
		StateMiningStart:  "MINING_START",
		StateMiningLoop:   "MINING_LOOP",
		State(42):         "UNKNOWN",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestHostileHaltsBeforeAnyInput(t *testing.T) {
	for _, marker := range []string{"Hostile Guristas 30 km", "Player Capsuleer 12 km"} {
		t.Run(marker, func(t *testing.T) {
			h := newHarness(t, nil)
			h.view.push(row("Asteroid (Veldspar) 8 km", 100), row(marker, 120))

			err := h.step(t)
			if !errors.Is(err, ErrHostileDetected) {
				t.Fatalf("Expected ErrHostileDetected, got %v", err)
			}
			if !h.bot.Halted() {
				t.Error("Expected bot to be halted")
			}
			if len(h.rec.events) != 0 {
				t.Errorf("Expected no input, got %v", h.rec.events)
			}
			if _, ok := h.bot.Target(); ok {
				t.Error("Expected no target after hostile")
			}

			if err := h.step(t); !errors.Is(err, ErrHalted) {
				t.Errorf("Expected ErrHalted while halted, got %v", err)
			}
			if h.view.reads != 1 {
				t.Errorf("Halted bot must not poll, got %d reads", h.view.reads)
			}
		})
	}
}

func TestHostileMidApproachClearsTarget(t *testing.T) {
	h := newHarness(t, nil)
	h.view.push(row("Asteroid (Veldspar) 24 km", 100))
	h.view.push(row("Asteroid (Veldspar) 24 km", 100))
	h.view.push(row("Asteroid (Veldspar) 19 km", 100), row("Hostile Frigate 40 km", 120))

	h.mustStep(t, StateApproaching)
	h.mustStep(t, StateApproaching)
	before := len(h.rec.events)

	if err := h.step(t); !errors.Is(err, ErrHostileDetected) {
		t.Fatalf("Expected ErrHostileDetected, got %v", err)
	}
	if len(h.rec.events) != before {
		t.Errorf("Input issued after hostile: %v", h.rec.events[before:])
	}
	snap := h.bot.Snapshot()
	if !snap.Halted || snap.HasTarget {
		t.Errorf("snapshot = %+v", snap)
	}

	h.bot.Reset()
	if h.bot.Halted() || h.bot.State() != StateIdleScanning {
		t.Error("Reset did not clear the halt")
	}
}

func TestLockingOnlyBelowRange(t *testing.T) {
	tests := []struct {
		distance string
		want     State
	}{
		{"24 km", StateApproaching},
		{"15 km", StateApproaching},
		{"15,000 m", StateApproaching},
		{"14.9 km", StateLocking},
		{"1200 m", StateLocking},
		{"1.2 AU", StateApproaching},
		{"", StateApproaching},
	}
	for _, tt := range tests {
		t.Run(tt.distance, func(t *testing.T) {
			h := newHarness(t, nil)
			h.view.push(row("Asteroid (Veldspar) 40 km", 100))
			h.view.push(row("Asteroid (Veldspar) 40 km", 100))
			h.view.push(row("Asteroid (Veldspar) "+tt.distance, 100))

			h.mustStep(t, StateApproaching)
			h.mustStep(t, StateApproaching)
			h.mustStep(t, tt.want)
		})
	}
}

func TestApproachCommandSentOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.view.push(row("Asteroid (Scordite) 40 km", 140))

	h.mustStep(t, StateApproaching)
	for i := 0; i < 3; i++ {
		h.mustStep(t, StateApproaching)
	}
	want := []string{"move 1000,150", "down q", "click 1000,150", "up q", "move 200,200"}
	if !reflect.DeepEqual(h.rec.events, want) {
		t.Errorf("events = %v, want %v", h.rec.events, want)
	}
}

func TestInRangeOnFirstReadSkipsApproach(t *testing.T) {
	h := newHarness(t, nil)
	h.view.push(row("Asteroid (Veldspar) 9 km", 100))

	h.mustStep(t, StateApproaching)
	h.mustStep(t, StateLocking)
	if len(h.rec.events) != 0 {
		t.Errorf("Expected no approach input, got %v", h.rec.events)
	}
}

func TestLockAndMiningStartSequences(t *testing.T) {
	h := newHarness(t, nil)
	h.view.push(row("Asteroid (Veldspar) 9 km", 100))

	h.mustStep(t, StateApproaching)
	h.mustStep(t, StateLocking)
	h.mustStep(t, StateMiningStart)

	wantLock := []string{"move 1000,110", "down ctrl", "click 1000,110", "up ctrl", "move 200,200"}
	if !reflect.DeepEqual(h.rec.events, wantLock) {
		t.Fatalf("lock events = %v, want %v", h.rec.events, wantLock)
	}
	if !reflect.DeepEqual(h.sleeps, []time.Duration{2 * time.Second}) {
		t.Errorf("sleeps = %v, want one 2s settle", h.sleeps)
	}

	h.rec.events = nil
	h.mustStep(t, StateMiningLoop)
	wantStart := []string{
		"down f1", "up f1", "down f2", "up f2",
		"down ctrl", "down space", "up space", "up ctrl",
		"move 200,200",
	}
	if !reflect.DeepEqual(h.rec.events, wantStart) {
		t.Errorf("mining start events = %v, want %v", h.rec.events, wantStart)
	}
}

func TestLockSettleHonoursCancellation(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Sleep = Sleep })
	h.view.push(row("Asteroid (Veldspar) 9 km", 100))
	h.mustStep(t, StateApproaching)
	h.mustStep(t, StateLocking)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.bot.Step(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if h.bot.State() != StateLocking {
		t.Errorf("state = %s, want LOCKING", h.bot.State())
	}
}

func TestMiningLoopTargetAbsentReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.view.push(row("Asteroid (Veldspar) 9 km", 100), row("Asteroid (Scordite) 20 km", 120))

	h.mustStep(t, StateApproaching)
	h.mustStep(t, StateLocking)
	h.mustStep(t, StateMiningStart)
	h.mustStep(t, StateMiningLoop)
	h.mustStep(t, StateMiningLoop)

	// Depleted: the Veldspar row is gone even though another asteroid remains.
	h.view.push(row("Asteroid (Scordite) 20 km", 100))
	h.mustStep(t, StateIdleScanning)
	if _, ok := h.bot.Target(); ok {
		t.Error("Expected target cleared")
	}

	h.mustStep(t, StateApproaching)
	tgt, _ := h.bot.Target()
	if tgt.Ore != "Scordite" {
		t.Errorf("Expected next target to be the Scordite row, got %+v", tgt)
	}
}

func TestMiningLoopToleratesMissedPolls(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.LostTargetPolls = 3 })
	h.view.push(row("Asteroid (Veldspar) 9 km", 100))
	h.mustStep(t, StateApproaching)
	h.mustStep(t, StateLocking)
	h.mustStep(t, StateMiningStart)
	h.mustStep(t, StateMiningLoop)

	h.view.push()
	h.mustStep(t, StateMiningLoop)
	h.mustStep(t, StateMiningLoop)
	h.mustStep(t, StateIdleScanning)
}

func TestReadFailureCountsAsTargetAbsent(t *testing.T) {
	h := newHarness(t, nil)
	h.view.push(row("Asteroid (Veldspar) 24 km", 100))
	h.view.push(row("Asteroid (Veldspar) 24 km", 100))
	h.view.errs = []error{nil, errors.New("tesseract crashed")}

	h.mustStep(t, StateApproaching)
	h.mustStep(t, StateIdleScanning)
	if snap := h.bot.Snapshot(); snap.LastError == "" {
		t.Error("Expected the read error in the snapshot")
	}
	h.mustStep(t, StateApproaching)
}

func TestTargetTrackedByLabel(t *testing.T) {
	h := newHarness(t, nil)
	h.view.push(row("Veldspar Asteroid 1 30 km", 100), row("Veldspar Asteroid 2 40 km", 120))
	// The list re-sorted: asteroid 1 moved down a row and closer.
	h.view.push(row("Veldspar Asteroid 2 40 km", 100), row("Veldspar Asteroid 1 12 km", 120))

	h.mustStep(t, StateApproaching)
	h.mustStep(t, StateLocking)
	tgt, _ := h.bot.Target()
	if tgt.Label != "Veldspar Asteroid 1" || tgt.Pos != (screenshot.Point{X: 1000, Y: 130}) {
		t.Errorf("target = %+v", tgt)
	}
	if tgt.Distance.Meters != 12000 {
		t.Errorf("distance = %v", tgt.Distance)
	}
}

func TestFailsafeHaltsBot(t *testing.T) {
	h := newHarness(t, nil)
	var fs input.Failsafe
	h.bot.ctrl = input.Guard(h.rec, &fs)
	h.view.push(row("Asteroid (Veldspar) 24 km", 100))

	h.mustStep(t, StateApproaching)
	fs.Trip("stop hotkey")
	err := h.step(t)
	if !errors.Is(err, input.ErrFailsafe) {
		t.Fatalf("Expected ErrFailsafe, got %v", err)
	}
	if !h.bot.Halted() {
		t.Error("Expected halt on failsafe")
	}
	if len(h.rec.events) != 0 {
		t.Errorf("Expected no input through a tripped failsafe, got %v", h.rec.events)
	}
}

func TestRunStopsOnHalt(t *testing.T) {
	h := newHarness(t, nil)
	h.view.push(row("Asteroid (Veldspar) 24 km", 100))
	h.view.push(row("Asteroid (Veldspar) 24 km", 100), row("Hostile Frigate 5 km", 120))

	err := h.bot.Run(context.Background(), time.Second)
	if !errors.Is(err, ErrHostileDetected) {
		t.Fatalf("Run = %v, want ErrHostileDetected", err)
	}
	if h.view.reads != 2 {
		t.Errorf("reads = %d, want 2", h.view.reads)
	}
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		State:     StateApproaching,
		HasTarget: true,
		Target:    Target{Label: "Asteroid (Veldspar)", Distance: overview.Distance{Value: 24, Unit: "km", Meters: 24000}},
		Ticks:     3,
		Rows:      []overview.Row{{Text: "a"}, {Text: "b"}},
	}
	want := `state=APPROACHING target="Asteroid (Veldspar)" distance=24 km ticks=3 rows=2`
	if s.String() != want {
		t.Errorf("String() = %q, want %q", s.String(), want)
	}
	if s.OverviewText() != "a\nb" {
		t.Errorf("OverviewText() = %q", s.OverviewText())
	}

	s.Halted, s.HaltReason = true, "failsafe"
	if got := s.String(); got[:17] != "HALTED (failsafe)" {
		t.Errorf("halted String() = %q", got)
	}
}
