package worker

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"asteroid-miner/src/ocr"
)

type fakeEngine struct {
	closed *atomic.Int32
	delay  time.Duration
}

func (e fakeEngine) Recognize(img image.Image) ([]ocr.Word, error) {
	time.Sleep(e.delay)
	// Echo the width so callers can check result ordering.
	return []ocr.Word{{Text: "w", Box: image.Rect(0, 0, img.Bounds().Dx(), 1)}}, nil
}

func (e fakeEngine) Close() error {
	e.closed.Add(1)
	return nil
}

func fakeFactory(closed *atomic.Int32, delay time.Duration) ocr.Factory {
	return func() (ocr.Engine, error) { return fakeEngine{closed: closed, delay: delay}, nil }
}

func TestRecognizeAllKeepsOrder(t *testing.T) {
	var closed atomic.Int32
	p, err := New(2, fakeFactory(&closed, 5*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	imgs := []image.Image{
		image.NewGray(image.Rect(0, 0, 1, 1)),
		image.NewGray(image.Rect(0, 0, 2, 1)),
		image.NewGray(image.Rect(0, 0, 3, 1)),
		image.NewGray(image.Rect(0, 0, 4, 1)),
	}
	words, errs := p.RecognizeAll(context.Background(), imgs)
	for i := range imgs {
		if errs[i] != nil {
			t.Fatalf("image %d: %v", i, errs[i])
		}
		if got := words[i][0].Box.Dx(); got != i+1 {
			t.Errorf("result %d came from image of width %d", i, got)
		}
	}

	p.Close()
	if closed.Load() != 2 {
		t.Errorf("Expected both engines closed, got %d", closed.Load())
	}
	p.Close()
}

func TestSubmitAfterClose(t *testing.T) {
	var closed atomic.Int32
	p, err := New(1, fakeFactory(&closed, 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Close()

	err = p.Submit(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)), func([]ocr.Word, error) {})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
}

func TestCancelledJobsSkipRecognition(t *testing.T) {
	var closed atomic.Int32
	p, err := New(1, fakeFactory(&closed, 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	var got error
	if err := p.Submit(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)), func(_ []ocr.Word, err error) {
		got = err
		wg.Done()
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	wg.Wait()
	if got != nil {
		t.Fatalf("live job failed: %v", got)
	}

	_, errs := p.RecognizeAll(ctx, []image.Image{image.NewGray(image.Rect(0, 0, 1, 1))})
	if !errors.Is(errs[0], context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", errs[0])
	}
}

func TestNewFailsWhenFactoryFails(t *testing.T) {
	var closed atomic.Int32
	calls := 0
	factory := func() (ocr.Engine, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("no tessdata")
		}
		return fakeEngine{closed: &closed}, nil
	}
	if _, err := New(3, factory); err == nil {
		t.Fatal("Expected error from failing factory")
	}
	if closed.Load() != 1 {
		t.Errorf("Expected the first engine to be released, got %d closes", closed.Load())
	}
}
