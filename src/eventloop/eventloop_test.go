package eventloop

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"asteroid-miner/src/bot"
	"asteroid-miner/src/control"
	"asteroid-miner/src/input"
	"asteroid-miner/src/mock"
	"asteroid-miner/src/overview"
)

type recordingRenderer struct {
	mu    sync.Mutex
	snaps []bot.Snapshot
}

func (r *recordingRenderer) Render(s bot.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recordingRenderer) Close() error { return nil }

func (r *recordingRenderer) last() bot.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return bot.Snapshot{}
	}
	return r.snaps[len(r.snaps)-1]
}

type countingAlarm struct {
	mu    sync.Mutex
	count int
}

func (a *countingAlarm) Sound() {
	a.mu.Lock()
	a.count++
	a.mu.Unlock()
}

func (a *countingAlarm) sounded() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

type fixture struct {
	loop     *Loop
	env      *mock.Env
	renderer *recordingRenderer
	alarm    *countingAlarm
	failsafe *input.Failsafe
	copied   [][]overview.Row
	notified []string
}

func newFixture(t *testing.T, autoStart bool) *fixture {
	t.Helper()
	world := mock.NewWorld(mock.WorldOptions{}, mock.DefaultBelt()...)
	keys := mock.DefaultKeys()
	env := mock.NewEnv(world, keys)

	opts := bot.DefaultOptions()
	opts.ApproachKey = keys.Approach
	opts.LockKey = keys.Lock
	opts.ActivationKeys = keys.Activation
	opts.StopCombo = keys.StopCombo
	opts.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	f := &fixture{
		env:      env,
		renderer: &recordingRenderer{},
		alarm:    &countingAlarm{},
		failsafe: &input.Failsafe{},
	}
	b := bot.New(opts, env, input.Guard(env, f.failsafe))
	f.loop = New(Options{
		Bot:       b,
		Renderer:  f.renderer,
		Alarm:     f.alarm,
		Failsafe:  f.failsafe,
		Interval:  time.Millisecond,
		AutoStart: autoStart,
		Copy: func(rows []overview.Row) error {
			f.copied = append(f.copied, rows)
			return nil
		},
		Notify: func(title, message string) {
			f.notified = append(f.notified, message)
		},
	})
	return f
}

func TestToggleStartsAndStops(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.loop.handleRequest(requestToggle)
	if !f.renderer.last().Running {
		t.Fatalf("Expected running after toggle")
	}
	f.loop.tick(ctx)
	if got := f.loop.Snapshot().State; got != bot.StateApproaching {
		t.Errorf("State after first tick = %v, want %v", got, bot.StateApproaching)
	}
	f.loop.handleRequest(requestToggle)
	if f.renderer.last().Running {
		t.Errorf("Expected stopped after second toggle")
	}
}

func TestHostileStopsLoopAndSoundsAlarm(t *testing.T) {
	f := newFixture(t, true)
	f.env.World.SetHostile("Hostile Frigate")
	f.loop.start()
	f.loop.tick(context.Background())

	last := f.renderer.last()
	if !last.Halted || last.Running {
		t.Fatalf("Expected halted and stopped, got %s", last)
	}
	if f.alarm.sounded() != 1 {
		t.Errorf("Alarm sounded %d times, want 1", f.alarm.sounded())
	}
	if n := len(f.env.Events()); n != 0 {
		t.Errorf("Expected no input on hostile, got %d events", n)
	}
	if len(f.notified) != 1 || !strings.Contains(f.notified[0], "Hostile Frigate") {
		t.Errorf("Expected one halt notification naming the hostile, got %v", f.notified)
	}
}

func TestStartClearsHaltAndFailsafe(t *testing.T) {
	f := newFixture(t, true)
	f.loop.start()
	f.failsafe.Trip("test")
	// Scan succeeds, approach input is blocked by the failsafe and halts the bot.
	for i := 0; i < 3 && !f.loop.Snapshot().Halted; i++ {
		f.loop.tick(context.Background())
	}
	if !f.loop.Snapshot().Halted {
		t.Fatalf("Expected failsafe halt")
	}
	if f.alarm.sounded() != 0 {
		t.Errorf("Failsafe halt must not sound the alarm")
	}

	f.loop.handleRequest(requestStart)
	s := f.renderer.last()
	if s.Halted || !s.Running || s.State != bot.StateIdleScanning {
		t.Errorf("Expected fresh running bot, got %s", s)
	}
	if f.failsafe.Tripped() {
		t.Errorf("Expected failsafe reset on start")
	}
}

func TestCopyUsesLastRows(t *testing.T) {
	f := newFixture(t, true)
	f.loop.start()
	f.loop.tick(context.Background())
	f.loop.handleRequest(requestCopy)
	if len(f.copied) != 1 || len(f.copied[0]) != 3 {
		t.Fatalf("Expected one copy of 3 rows, got %v", f.copied)
	}
}

func TestRunMinesWithMockWorld(t *testing.T) {
	f := newFixture(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	deadline := time.After(4 * time.Second)
	for f.env.World.Mined()["Veldspar Asteroid 1"] < 3 {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatalf("Timed out waiting for first asteroid to be mined, mined=%v", f.env.World.Mined())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestRunAnswersControlCommands(t *testing.T) {
	ports := control.PortRange{Start: 49721, End: 49723}
	f := newFixture(t, false)
	f.loop.opts.Server = control.NewServer(ports)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	client := control.NewClient(ports)
	var (
		found bool
		text  string
		err   error
	)
	for i := 0; i < 50; i++ {
		found, text, err = client.Send(ctx, control.CommandStatus)
		if found {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !found {
		t.Skipf("Resident not reachable on loopback: %v", err)
	}
	if err != nil || !strings.Contains(text, "running=false") {
		t.Fatalf("STATUS = %q, %v", text, err)
	}

	_, text, err = client.Send(ctx, control.CommandStart)
	if err != nil || !strings.Contains(text, "running=true") {
		t.Errorf("START = %q, %v", text, err)
	}
	_, text, err = client.Send(ctx, control.CommandStop)
	if err != nil || !strings.Contains(text, "running=false") {
		t.Errorf("STOP = %q, %v", text, err)
	}
}
