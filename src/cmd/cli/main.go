package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vcaesar/imgo"

	"asteroid-miner/src/clipboard"
	"asteroid-miner/src/config"
	"asteroid-miner/src/control"
	"asteroid-miner/src/ocr"
	"asteroid-miner/src/overview"
	"asteroid-miner/src/screenshot"
	"asteroid-miner/src/vision"
	"asteroid-miner/src/worker"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var errNoResident = errors.New("no running miner found on the control ports")

type cliOptions struct {
	verbose bool
	envPath string

	filePath   string
	jsonOutput bool
	clipboard  bool

	region string
	out    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"miner-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "miner-cli",
		Short:         "Setup and control tools for the asteroid miner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logging goes to stderr only when asked, so stdout stays machine-readable.
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.PersistentFlags().StringVar(&opts.envPath, "env", "", "Path to .env file (highest precedence)")

	cmd.AddCommand(
		newDistanceCmd(),
		newScanCmd(opts),
		newCaptureCmd(opts),
		newControlCmd(opts, control.CommandStatus, "Show the running miner's status"),
		newControlCmd(opts, control.CommandStart, "Start (or restart after a halt) the running miner"),
		newControlCmd(opts, control.CommandStop, "Stop the running miner"),
	)
	return cmd
}

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance <text>",
		Short: "Parse an Overview distance such as \"24 km\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			d, ok := overview.ParseDistance(text)
			if !ok {
				return fmt.Errorf("no distance in %q", text)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s m\n", d, formatMeters(d.Meters))
			return nil
		},
	}
}

func newScanCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the Overview OCR pipeline on a PNG screenshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.clipboard, "clipboard", false, "Also copy the rows to the clipboard")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCaptureCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Save a screen region to PNG, to check OVERVIEW_REGION",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(*opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.region, "region", "", "Region as x,y,w,h (default OVERVIEW_REGION)")
	cmd.Flags().StringVar(&opts.out, "out", "overview.png", "Output PNG path")
	return cmd
}

func newControlCmd(opts *cliOptions, command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   strings.ToLower(command),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			client := control.NewClient(control.PortRange{Start: cfg.ControlPortStart, End: cfg.ControlPortEnd})
			found, text, err := client.Send(ctx, command)
			if err != nil {
				return err
			}
			if !found {
				return errNoResident
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func loadConfig(opts cliOptions) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{EnvPathOverride: opts.envPath})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "clipboard", "region", "out", "verbose", "env"} {
			single := "-" + name
			if arg == single || strings.HasPrefix(arg, single+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

func readInput(filePath string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if filePath == "-" {
		data, err = io.ReadAll(io.LimitReader(os.Stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if err := validatePNG(data); err != nil {
		return nil, err
	}
	return data, nil
}

func validatePNG(data []byte) error {
	if len(data) < 8 || !bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func runScan(ctx context.Context, opts cliOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	data, err := readInput(opts.filePath)
	if err != nil {
		return err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode PNG: %w", err)
	}

	pool, err := worker.New(cfg.OCRWorkers, ocr.TesseractFactory(cfg.TesseractLang))
	if err != nil {
		return err
	}
	defer pool.Close()

	classifier := overview.Classifier{
		AsteroidMarkers: cfg.AsteroidMarkers,
		HostileMarkers:  cfg.HostileMarkers,
		Ores:            cfg.Ores,
	}
	v := vision.New(vision.Options{Classifier: classifier, Pool: pool, DebugSaveImages: cfg.OCRDebugSaveImages})

	start := time.Now()
	rows, err := v.Recognize(ctx, img, image.Point{})
	if err != nil {
		return fmt.Errorf("OCR failed: %w", err)
	}
	elapsed := time.Since(start)
	log.Printf("Scan: %d rows in %v", len(rows), elapsed)

	if opts.clipboard {
		if err := clipboard.CopyRows(rows); err != nil {
			return fmt.Errorf("failed to copy rows: %w", err)
		}
	}

	result := ScanResult{
		Source:    opts.filePath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		Rows:      describeRows(rows, classifier),
	}
	return outputScan(out, result, opts.jsonOutput)
}

type RowResult struct {
	Text     string   `json:"text"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Ore      string   `json:"ore,omitempty"`
	Distance string   `json:"distance,omitempty"`
	Meters   *float64 `json:"meters,omitempty"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
}

type ScanResult struct {
	Source    string      `json:"source"`
	Timestamp string      `json:"timestamp"`
	Duration  float64     `json:"duration_seconds"`
	Rows      []RowResult `json:"rows"`
}

// describeRows classifies rows. Meters is omitted for AU distances since JSON has no
// infinity.
func describeRows(rows []overview.Row, c overview.Classifier) []RowResult {
	out := make([]RowResult, 0, len(rows))
	for _, r := range rows {
		center := r.Center()
		res := RowResult{Text: r.Text, Label: r.Label(), Kind: "other", X: center.X, Y: center.Y}
		switch {
		case c.IsHostile(r):
			res.Kind = "hostile"
		case c.IsAsteroid(r):
			res.Kind = "asteroid"
			res.Ore = c.OreName(r)
		}
		if d, ok := r.Distance(); ok {
			res.Distance = d.String()
			if !math.IsInf(d.Meters, 0) {
				m := d.Meters
				res.Meters = &m
			}
		}
		out = append(out, res)
	}
	return out
}

func outputScan(out io.Writer, result ScanResult, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}
	for _, r := range result.Rows {
		dist := r.Distance
		if dist == "" {
			dist = "-"
		}
		fmt.Fprintf(out, "%-8s %-10s %s\n", r.Kind, dist, r.Text)
	}
	return nil
}

func runCapture(opts cliOptions, out io.Writer) error {
	region := config.DefaultOverviewRegion
	if opts.region != "" {
		r, err := screenshot.ParseRegion(opts.region)
		if err != nil {
			return fmt.Errorf("--region: %w", err)
		}
		region = r
	} else {
		cfg, err := loadConfig(opts)
		if err != nil {
			return err
		}
		region = cfg.OverviewRegion
	}

	img, err := screenshot.CaptureRegion(region)
	if err != nil {
		return err
	}
	if err := imgo.Save(opts.out, img); err != nil {
		return fmt.Errorf("failed to save %s: %w", opts.out, err)
	}
	fmt.Fprintf(out, "Saved %s to %s\n", region, opts.out)
	return nil
}

func formatMeters(m float64) string {
	if math.IsInf(m, 1) {
		return "+Inf"
	}
	return fmt.Sprintf("%.0f", m)
}
