package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"asteroid-miner/src/alarm"
	"asteroid-miner/src/clipboard"
	"asteroid-miner/src/config"
	"asteroid-miner/src/control"
	"asteroid-miner/src/eventloop"
	"asteroid-miner/src/hotkey"
	"asteroid-miner/src/logutil"
	"asteroid-miner/src/notification"
	"asteroid-miner/src/runtimeinit"
	"asteroid-miner/src/status"
	"asteroid-miner/src/tray"
)

type mainOptions struct {
	mock      bool
	status    string
	autostart bool
	envPath   string
}

func main() {
	// Ensure DPI awareness before querying metrics or capturing, so screen and click
	// coordinates agree.
	enableDPIAwareness()

	// systray needs the main goroutine on its own OS thread.
	runtime.LockOSThread()

	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// A tray build has no console to show the error in.
		notification.ShowBlockingError("Asteroid miner", err.Error())
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"asteroid-miner"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "asteroid-miner",
		Short:         "Mine asteroids by reading the Overview from the screen",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*opts)
		},
	}
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "Run against a simulated asteroid belt")
	cmd.Flags().StringVar(&opts.status, "status", "", "Status display: log, terminal or tray (default from STATUS_MODE)")
	cmd.Flags().BoolVar(&opts.autostart, "autostart", false, "Start mining immediately")
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to .env file (highest precedence)")
	return cmd
}

// normalizeLegacyArgs maps Go-style single-dash long flags to the double-dash form.
func normalizeLegacyArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 1; i < len(out); i++ {
		for _, name := range []string{"mock", "status", "autostart", "env"} {
			single := "-" + name
			if out[i] == single || strings.HasPrefix(out[i], single+"=") {
				out[i] = "-" + out[i]
				break
			}
		}
	}
	return out
}

func run(opts mainOptions) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			EnvPathOverride:    opts.envPath,
			StatusModeOverride: opts.status,
		},
		SetupLogging: logutil.Setup,
		Mock:         opts.mock,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	if !opts.mock {
		logMonitorConfiguration()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	siren := alarm.New(cfg.Alarm)
	defer siren.Close()

	loop := eventloop.New(eventloop.Options{
		Bot:       rt.Bot,
		Alarm:     siren,
		Server:    control.NewServer(control.PortRange{Start: cfg.ControlPortStart, End: cfg.ControlPortEnd}),
		Failsafe:  rt.Failsafe,
		Interval:  cfg.PollInterval,
		Copy:      clipboard.CopyRows,
		Notify:    notification.Show,
		AutoStart: opts.autostart,
	})
	actions := loop.Actions(cancel)

	listener := hotkey.NewListener()
	loop.StartHotkeys(listener, cfg.StopHotkey, cfg.ToggleHotkey, cfg.FailsafeCorner && !opts.mock)
	defer listener.Stop()

	log.Printf("Asteroid miner initialized (status=%s, stop=%s, toggle=%s)", cfg.StatusMode, cfg.StopHotkey, cfg.ToggleHotkey)

	switch cfg.StatusMode {
	case config.StatusModeTray:
		t := tray.New(actions)
		loop.SetRenderer(status.Multi{status.NewLogRenderer(), t})
		errCh := make(chan error, 1)
		go func() {
			errCh <- loop.Run(ctx)
			_ = t.Close()
		}()
		t.Run(nil)
		cancel()
		return loopResult(<-errCh)

	case config.StatusModeTerminal:
		term, err := status.NewTerminalRenderer(actions)
		if err != nil {
			return err
		}
		if !cfg.EnableFileLogging {
			logutil.Silence()
		}
		loop.SetRenderer(term)
		err = loop.Run(ctx)
		_ = term.Close()
		return loopResult(err)

	default:
		loop.SetRenderer(status.NewLogRenderer())
		return loopResult(loop.Run(ctx))
	}
}

// loopResult treats cancellation as a clean shutdown.
func loopResult(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		log.Printf("Event loop stopped")
		return nil
	}
	return fmt.Errorf("event loop stopped: %w", err)
}
