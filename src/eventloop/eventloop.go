package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"asteroid-miner/src/bot"
	"asteroid-miner/src/control"
	"asteroid-miner/src/hotkey"
	"asteroid-miner/src/input"
	"asteroid-miner/src/overview"
	"asteroid-miner/src/status"
)

// Alarm is sounded when the bot halts on a hostile.
type Alarm interface {
	Sound()
}

type request int

const (
	requestToggle request = iota
	requestStart
	requestStop
	requestCopy
)

func (r request) String() string {
	switch r {
	case requestToggle:
		return "toggle"
	case requestStart:
		return "start"
	case requestStop:
		return "stop"
	case requestCopy:
		return "copy"
	default:
		return "unknown"
	}
}

type Options struct {
	Bot       *bot.Bot
	Renderer  status.Renderer
	Alarm     Alarm
	Failsafe  *input.Failsafe
	Interval  time.Duration
	AutoStart bool

	// Server is optional; without it the loop takes no control commands.
	Server control.Server
	// Copy puts rows on the clipboard.
	Copy   func(rows []overview.Row) error
	// Notify tells the user why the bot halted.
	Notify func(title, message string)
}

// Loop is the single-threaded coordinator: it steps the bot on a ticker while running
// and serializes start/stop requests from hotkeys, renderers and the control channel.
type Loop struct {
	opts     Options
	running  bool
	requests chan request
	last     bot.Snapshot
}

func New(opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Renderer == nil {
		opts.Renderer = status.NewLogRenderer()
	}
	return &Loop{opts: opts, requests: make(chan request, 8), running: opts.AutoStart}
}

// SetRenderer replaces the renderer. Call before Run.
func (l *Loop) SetRenderer(r status.Renderer) {
	if r != nil {
		l.opts.Renderer = r
	}
}

// Actions returns renderer callbacks that post into the loop. quit cancels the
// application context.
func (l *Loop) Actions(quit func()) status.Actions {
	return status.Actions{Toggle: l.Toggle, Copy: l.Copy, Quit: quit}
}

func (l *Loop) Toggle() { l.post(requestToggle) }
func (l *Loop) Start()  { l.post(requestStart) }
func (l *Loop) Stop()   { l.post(requestStop) }
func (l *Loop) Copy()   { l.post(requestCopy) }

func (l *Loop) post(r request) {
	select {
	case l.requests <- r:
	default:
		log.Printf("Warning: Loop request queue full, dropping %s", r)
	}
}

// StartHotkeys binds the stop and toggle combinations and the failsafe corner, and
// starts the listener. The stop hotkey and the corner trip the failsafe first, so input
// stops even while a step is in progress.
func (l *Loop) StartHotkeys(listener *hotkey.Listener, stopCombo, toggleCombo string, corner bool) {
	trip := func(reason string) func() {
		return func() {
			if l.opts.Failsafe != nil {
				l.opts.Failsafe.Trip(reason)
			}
			l.Stop()
		}
	}
	if stopCombo != "" {
		listener.Bind(hotkey.Binding{Name: "stop", Combo: stopCombo, Callback: trip("stop hotkey")})
	}
	if toggleCombo != "" {
		listener.Bind(hotkey.Binding{Name: "toggle", Combo: toggleCombo, Callback: l.Toggle})
	}
	if corner {
		listener.OnCorner(trip("pointer in screen corner"))
	}
	listener.Start()
}

// Run processes requests and ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	var connCh chan control.Conn
	if srv := l.opts.Server; srv != nil {
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Close()
		log.Printf("Resident listening on 127.0.0.1:%d", srv.Port())

		// Accept in the background so a slow client never delays a tick.
		connCh = make(chan control.Conn, 4)
		go func() {
			for {
				conn, err := srv.Next(ctx)
				if err != nil {
					close(connCh)
					return
				}
				connCh <- conn
			}
		}()
	}

	if l.running {
		l.start()
	}
	l.publish()

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-l.requests:
			l.handleRequest(r)
		case conn, ok := <-connCh:
			if !ok {
				connCh = nil
				continue
			}
			l.handleConn(conn)
		case <-ticker.C:
			if l.running {
				l.tick(ctx)
			}
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	err := l.opts.Bot.Step(ctx)
	if err != nil && !l.opts.Bot.Halted() && ctx.Err() == nil {
		log.Printf("ERROR: Bot step failed: %v", err)
	}
	if l.opts.Bot.Halted() {
		l.running = false
		log.Printf("Loop: stopped, bot halted: %v", err)
		if errors.Is(err, bot.ErrHostileDetected) && l.opts.Alarm != nil {
			l.opts.Alarm.Sound()
		}
		if l.opts.Notify != nil {
			l.opts.Notify("Mining halted", l.opts.Bot.Snapshot().HaltReason)
		}
	}
	l.publish()
}

func (l *Loop) handleRequest(r request) {
	log.Printf("Loop: %s requested", r)
	switch r {
	case requestToggle:
		if l.running {
			l.stop()
		} else {
			l.start()
		}
	case requestStart:
		l.start()
	case requestStop:
		l.stop()
	case requestCopy:
		l.copyOverview()
		return
	}
	l.publish()
}

func (l *Loop) handleConn(conn control.Conn) {
	defer conn.Close()
	var err error
	switch conn.Request().Command {
	case control.CommandStatus:
		err = conn.RespondOK(l.statusText())
	case control.CommandStart:
		l.start()
		l.publish()
		err = conn.RespondOK(l.statusText())
	case control.CommandStop:
		l.stop()
		l.publish()
		err = conn.RespondOK(l.statusText())
	default:
		err = conn.RespondError("unsupported command")
	}
	if err != nil {
		log.Printf("control: failed to respond: %v", err)
	}
}

// start resets the bot and the failsafe; a restart always begins from a fresh scan.
func (l *Loop) start() {
	if l.opts.Failsafe != nil {
		l.opts.Failsafe.Reset()
	}
	l.opts.Bot.Reset()
	l.running = true
}

func (l *Loop) stop() {
	l.running = false
}

func (l *Loop) copyOverview() {
	if l.opts.Copy == nil {
		return
	}
	if err := l.opts.Copy(l.last.Rows); err != nil {
		log.Printf("Warning: Copy overview failed: %v", err)
		return
	}
	log.Printf("Loop: copied %d overview rows", len(l.last.Rows))
}

func (l *Loop) publish() {
	s := l.opts.Bot.Snapshot()
	s.Running = l.running
	l.last = s
	l.opts.Renderer.Render(s)
}

func (l *Loop) statusText() string {
	return fmt.Sprintf("running=%v %s", l.running, l.last.String())
}

// Snapshot returns the last published snapshot. Only safe from the loop goroutine or
// after Run returns.
func (l *Loop) Snapshot() bot.Snapshot { return l.last }
