// Package vision turns a screen region into Overview rows: capture, preprocess,
// multi-pass OCR on the worker pool, then line reconstruction.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/vcaesar/imgo"

	"asteroid-miner/src/logutil"
	"asteroid-miner/src/ocr"
	"asteroid-miner/src/overview"
	"asteroid-miner/src/screenshot"
	"asteroid-miner/src/worker"
)

// ErrAllPassesFailed is returned when no OCR pass produced a result.
var ErrAllPassesFailed = errors.New("all OCR passes failed")

// CaptureFunc grabs a region of the screen.
type CaptureFunc func(region screenshot.Region) (*image.RGBA, error)

type Options struct {
	Region     screenshot.Region
	Classifier overview.Classifier
	Pool       *worker.Pool
	// Capture defaults to screenshot.CaptureRegion.
	Capture CaptureFunc
	// Scale defaults to ocr.DefaultScale.
	Scale int
	// HashDistance is the largest perceptual-hash distance at which a capture counts
	// as unchanged. Negative disables change detection.
	HashDistance int
	// MaxReuse bounds how many consecutive polls may be answered from the previous
	// rows, since a changed distance digit rarely moves the hash.
	MaxReuse        int
	DebugSaveImages bool
}

// Vision reads the Overview. It is safe for use by one goroutine at a time.
type Vision struct {
	opts Options

	mu       sync.Mutex
	lastHash *goimagehash.ImageHash
	lastRows []overview.Row
	reused   int
}

func New(opts Options) *Vision {
	if opts.Capture == nil {
		opts.Capture = screenshot.CaptureRegion
	}
	if opts.Scale <= 0 {
		opts.Scale = ocr.DefaultScale
	}
	return &Vision{opts: opts}
}

// ReadOverview captures the configured region and returns its rows in screen order.
func (v *Vision) ReadOverview(ctx context.Context) ([]overview.Row, error) {
	img, err := v.opts.Capture(v.opts.Region)
	if err != nil {
		return nil, fmt.Errorf("capture overview: %w", err)
	}

	if rows, ok := v.unchanged(img); ok {
		log.Printf("DEBUG: Vision: overview unchanged, reusing %d rows", len(rows))
		return rows, nil
	}

	origin := image.Pt(v.opts.Region.X, v.opts.Region.Y)
	rows, err := v.Recognize(ctx, img, origin)
	if err != nil {
		v.forget()
		return nil, err
	}

	v.mu.Lock()
	v.lastRows = rows
	v.mu.Unlock()
	return cloneRows(rows), nil
}

// Recognize runs the OCR pipeline on img, whose top-left corner sits at origin on
// screen.
func (v *Vision) Recognize(ctx context.Context, img image.Image, origin image.Point) ([]overview.Row, error) {
	if v.opts.Pool == nil {
		return nil, errors.New("vision: no OCR worker pool")
	}

	passes := ocr.Preprocess(img, v.opts.Scale)
	imgs := make([]image.Image, len(passes))
	for i, p := range passes {
		imgs[i] = p.Image
		if v.opts.DebugSaveImages {
			name := fmt.Sprintf("debug_overview_%s.png", p.Name)
			if err := imgo.Save(name, p.Image); err != nil {
				log.Printf("Warning: Could not save debug image: %v", err)
			}
		}
	}

	results, errs := v.opts.Pool.RecognizeAll(ctx, imgs)

	width := img.Bounds().Dx()
	var perPass [][]overview.Row
	var lastErr error
	for i, words := range results {
		if errs[i] != nil {
			log.Printf("Vision: pass %s failed: %v", passes[i].Name, errs[i])
			lastErr = errs[i]
			continue
		}
		for j := range words {
			words[j].Box = toScreen(words[j].Box, origin, v.opts.Scale)
		}
		perPass = append(perPass, buildLines(words, origin.X, width))
	}
	if len(perPass) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrAllPassesFailed, lastErr)
	}

	rows := mergePasses(perPass, v.opts.Classifier)
	for _, r := range rows {
		log.Printf("DEBUG: Vision: row y=%d %q", r.Center().Y, logutil.Sanitize(r.Text))
	}
	return rows, nil
}

// unchanged hashes img and reports whether the previous rows can be reused.
func (v *Vision) unchanged(img image.Image) ([]overview.Row, bool) {
	if v.opts.HashDistance < 0 {
		return nil, false
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	prev := v.lastHash
	v.lastHash = hash
	if prev == nil || v.lastRows == nil || v.reused >= v.opts.MaxReuse {
		v.reused = 0
		return nil, false
	}
	dist, err := prev.Distance(hash)
	if err != nil || dist > v.opts.HashDistance {
		v.reused = 0
		return nil, false
	}
	v.reused++
	return cloneRows(v.lastRows), true
}

func (v *Vision) forget() {
	v.mu.Lock()
	v.lastHash = nil
	v.lastRows = nil
	v.reused = 0
	v.mu.Unlock()
}

func cloneRows(rows []overview.Row) []overview.Row {
	if rows == nil {
		return nil
	}
	out := make([]overview.Row, len(rows))
	copy(out, rows)
	return out
}
