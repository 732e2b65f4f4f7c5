package screenshot

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/kbinani/screenshot"
)

// Region represents a screen region to capture, in virtual-screen coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

type Point struct {
	X int
	Y int
}

// Rect converts the region to an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// ParseRegion parses "x,y,w,h".
func ParseRegion(s string) (Region, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return Region{}, fmt.Errorf("invalid region %q: %w", s, err)
	}
	r := Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Empty() {
		return Region{}, fmt.Errorf("invalid region dimensions: width=%d, height=%d", r.Width, r.Height)
	}
	return r, nil
}

// ParsePoint parses "x,y".
func ParsePoint(s string) (Point, error) {
	v, err := parseInts(s, 2)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return Point{X: v[0], Y: v[1]}, nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated integers, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// CaptureRegion captures a specific region of the screen
func CaptureRegion(region Region) (*image.RGBA, error) {
	if region.Empty() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}

	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}

// VirtualBounds returns the union of all active display bounds.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// Visible reports whether the region lies entirely on the virtual screen.
func Visible(region Region) (bool, error) {
	b, err := VirtualBounds()
	if err != nil {
		return false, err
	}
	return region.Rect().In(b), nil
}
