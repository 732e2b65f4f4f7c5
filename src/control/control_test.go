package control

import (
	"context"
	"testing"
	"time"
)

// testRange keeps tests off the default ports so a running bot does not interfere.
var testRange = PortRange{Start: 49711, End: 49713}

func TestServerClientRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := NewServer(testRange)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()

	if port, ok := DetectResidentPort(ctx, testRange); !ok || port != testRange.Start {
		t.Fatalf("DetectResidentPort = %d, %v", port, ok)
	}

	tests := []struct {
		send    string
		respond func(Conn) error
		want    string
		wantErr bool
	}{
		{"status", func(c Conn) error { return c.RespondOK("state=MINING_LOOP") }, "state=MINING_LOOP", false},
		{"STOP", func(c Conn) error { return c.RespondOK("stopped") }, "stopped", false},
		{"start", func(c Conn) error { return c.RespondError("halted: hostile") }, "", true},
	}

	client := NewClient(testRange)
	for _, tt := range tests {
		t.Run(tt.send, func(t *testing.T) {
			type reply struct {
				found bool
				text  string
				err   error
			}
			done := make(chan reply, 1)
			go func() {
				found, text, err := client.Send(ctx, tt.send)
				done <- reply{found, text, err}
			}()

			conn, err := srv.Next(ctx)
			if err != nil {
				t.Fatalf("next: %v", err)
			}
			if got := conn.Request().Command; got != parseCommand(tt.send) {
				t.Errorf("command = %q", got)
			}
			if err := tt.respond(conn); err != nil {
				t.Fatalf("respond: %v", err)
			}
			_ = conn.Close()

			r := <-done
			if !r.found {
				t.Fatal("expected resident to be found")
			}
			if (r.err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", r.err, tt.wantErr)
			}
			if r.text != tt.want {
				t.Errorf("text = %q, want %q", r.text, tt.want)
			}
		})
	}
}

func TestSecondResidentFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := PortRange{Start: 49715, End: 49715}
	first := NewServer(r)
	if err := first.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer first.Close()

	if err := NewServer(r).Start(ctx); err == nil {
		t.Error("Expected second resident to fail to bind")
	}
}

func TestClientWithoutResident(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	found, _, err := NewClient(PortRange{Start: 49718, End: 49718}).Send(ctx, CommandStatus)
	if found || err != nil {
		t.Errorf("Send = %v, %v; want not found", found, err)
	}
}

func TestPortRangeNormalize(t *testing.T) {
	tests := []struct {
		in, want PortRange
	}{
		{PortRange{}, PortRange{DefaultPortStart, DefaultPortEnd}},
		{PortRange{Start: 80, End: 2000}, PortRange{1024, 2000}},
		{PortRange{Start: 50000, End: 49000}, PortRange{49000, 50000}},
		{PortRange{Start: 60000, End: 70000}, PortRange{60000, 65535}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("%+v.Normalize() = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
