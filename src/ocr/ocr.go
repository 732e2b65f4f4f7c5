package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// ErrEngineClosed is returned by Recognize after Close.
var ErrEngineClosed = errors.New("ocr engine closed")

// Word is one recognized word with its box in the coordinates of the image it was
// read from.
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Engine recognizes words in an image. Implementations are not safe for concurrent
// use; the worker pool gives every goroutine its own engine.
type Engine interface {
	Recognize(img image.Image) ([]Word, error)
	Close() error
}

// Factory creates a fresh engine.
type Factory func() (Engine, error)

// TesseractEngine wraps a gosseract client configured for block text.
type TesseractEngine struct {
	client        *gosseract.Client
	minConfidence float64
}

// NewTesseract creates an engine for the given language ("eng" when empty).
func NewTesseract(lang string) (*TesseractEngine, error) {
	if lang == "" {
		lang = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set tesseract language %q: %w", lang, err)
	}
	// PSM 6: a single uniform block of text, which is what an Overview list is.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	return &TesseractEngine{client: client, minConfidence: 10}, nil
}

// TesseractFactory returns a Factory producing engines for lang.
func TesseractFactory(lang string) Factory {
	return func() (Engine, error) { return NewTesseract(lang) }
}

func (e *TesseractEngine) Recognize(img image.Image) ([]Word, error) {
	if e.client == nil {
		return nil, ErrEngineClosed
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to load image into tesseract: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" || b.Confidence < e.minConfidence {
			continue
		}
		words = append(words, Word{Text: text, Box: b.Box, Confidence: b.Confidence})
	}
	return words, nil
}

func (e *TesseractEngine) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	if err != nil {
		log.Printf("WARNING: closing tesseract client: %v", err)
	}
	return err
}
