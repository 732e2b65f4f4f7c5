package main

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"asteroid-miner", "-mock", "-status", "tray"},
			out:  []string{"asteroid-miner", "--mock", "--status", "tray"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"asteroid-miner", "-autostart=true", "-env=/tmp/.env"},
			out:  []string{"asteroid-miner", "--autostart=true", "--env=/tmp/.env"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"asteroid-miner", "--mock", "-x", "-mockery"},
			out:  []string{"asteroid-miner", "--mock", "-x", "-mockery"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--mock", "--status", "terminal", "--autostart", "--env", "/tmp/.env"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !opts.mock || !opts.autostart {
		t.Fatalf("Expected mock and autostart, got %+v", opts)
	}
	if opts.status != "terminal" {
		t.Fatalf("Expected status=terminal, got %q", opts.status)
	}
	if opts.envPath != "/tmp/.env" {
		t.Fatalf("Expected envPath=/tmp/.env, got %q", opts.envPath)
	}
}

func TestLoopResult(t *testing.T) {
	if err := loopResult(context.Canceled); err != nil {
		t.Errorf("Cancellation should be a clean stop, got %v", err)
	}
	if err := loopResult(nil); err != nil {
		t.Errorf("nil should be a clean stop, got %v", err)
	}
	boom := errors.New("port busy")
	if err := loopResult(boom); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}
