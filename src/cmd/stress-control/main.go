// Command stress-control floods the running miner's control channel with concurrent
// clients to check it keeps answering while the bot loop runs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"asteroid-miner/src/control"
)

type stressOptions struct {
	n        int
	command  string
	deadline time.Duration
	ports    control.PortRange
}

type stressResult struct {
	ok, missing, errs int32
	elapsed           time.Duration
}

func (r stressResult) String() string {
	return fmt.Sprintf("ok=%d missing=%d err=%d elapsed=%s", r.ok, r.missing, r.errs, r.elapsed)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-control",
		Short:         "Stress test the miner control channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts, cmd.OutOrStdout())
		},
	}

	def := control.DefaultPortRange()
	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.command, "command", control.CommandStatus, "command each client sends (STATUS, START or STOP)")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	cmd.Flags().IntVar(&opts.ports.Start, "port-start", def.Start, "first control port")
	cmd.Flags().IntVar(&opts.ports.End, "port-end", def.End, "last control port")

	return cmd
}

func runWithOptions(opts stressOptions, out io.Writer) error {
	command := strings.ToUpper(strings.TrimSpace(opts.command))
	switch command {
	case control.CommandStatus, control.CommandStart, control.CommandStop:
	default:
		return fmt.Errorf("unsupported command %q", opts.command)
	}
	res := stress(opts.n, command, opts.deadline, opts.ports)
	fmt.Fprintf(out, "launched=%d %s\n", opts.n, res)
	return nil
}

func stress(n int, command string, deadline time.Duration, ports control.PortRange) stressResult {
	var (
		wg  sync.WaitGroup
		res stressResult
	)
	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), deadline)
			defer cancel()
			found, _, err := control.NewClient(ports).Send(ctx, command)
			switch {
			case err != nil:
				atomic.AddInt32(&res.errs, 1)
			case !found:
				atomic.AddInt32(&res.missing, 1)
			default:
				atomic.AddInt32(&res.ok, 1)
			}
		}()
	}
	wg.Wait()
	res.elapsed = time.Since(start)
	return res
}
