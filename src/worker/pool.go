package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"runtime"
	"sync"

	"asteroid-miner/src/ocr"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool closed")

// ResultCallback is invoked on OCR completion (from a worker goroutine).
type ResultCallback func(words []ocr.Word, err error)

// Pool is a fixed-size OCR worker pool. Every worker owns one engine, because a
// tesseract client cannot be shared between goroutines.
type Pool struct {
	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	engines []ocr.Engine
}

type job struct {
	ctx context.Context
	img image.Image
	cb  ResultCallback
}

// New creates a worker pool with one engine per worker. Size defaults to NumCPU
// (capped at 4, the number of preprocessing passes) when size<=0.
func New(size int, factory ocr.Factory) (*Pool, error) {
	if size <= 0 {
		size = min(runtime.NumCPU(), 4)
	}
	p := &Pool{jobs: make(chan job, size)}
	for i := 0; i < size; i++ {
		e, err := factory()
		if err != nil {
			p.closeEngines()
			return nil, fmt.Errorf("failed to create OCR engine %d/%d: %w", i+1, size, err)
		}
		p.engines = append(p.engines, e)
	}
	p.start()
	return p, nil
}

func (p *Pool) start() {
	for i, e := range p.engines {
		p.wg.Add(1)
		go func(id int, engine ocr.Engine) {
			defer p.wg.Done()
			for j := range p.jobs {
				if err := j.ctx.Err(); err != nil {
					j.cb(nil, err)
					continue
				}
				b := j.img.Bounds()
				words, err := engine.Recognize(j.img)
				log.Printf("DEBUG: Worker %d: OCR %dx%d -> %d words, err=%v", id, b.Dx(), b.Dy(), len(words), err)
				j.cb(words, err)
			}
		}(i, e)
	}
}

// Submit enqueues an OCR job, blocking until a slot frees up or ctx is done.
func (p *Pool) Submit(ctx context.Context, img image.Image, cb ResultCallback) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job{ctx: ctx, img: img, cb: cb}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecognizeAll runs every image through the pool and waits for all results. The
// returned slices are index-aligned with imgs.
func (p *Pool) RecognizeAll(ctx context.Context, imgs []image.Image) ([][]ocr.Word, []error) {
	words := make([][]ocr.Word, len(imgs))
	errs := make([]error, len(imgs))

	var wg sync.WaitGroup
	for i, img := range imgs {
		wg.Add(1)
		i := i
		err := p.Submit(ctx, img, func(w []ocr.Word, err error) {
			words[i], errs[i] = w, err
			wg.Done()
		})
		if err != nil {
			errs[i] = err
			wg.Done()
		}
	}
	wg.Wait()
	return words, errs
}

// Close stops the pool after draining current work and releases the engines.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.closeEngines()
}

func (p *Pool) closeEngines() {
	for _, e := range p.engines {
		_ = e.Close()
	}
	p.engines = nil
}
