package clipboard

import (
	"errors"
	"testing"

	"asteroid-miner/src/overview"
)

func TestWrite(t *testing.T) {
	// Needs a desktop session; only check it does not panic.
	if err := Write("test text"); err != nil {
		t.Logf("Failed to write to clipboard: %v", err)
	}
}

func TestFormatRows(t *testing.T) {
	rows := []overview.Row{
		{Text: "Asteroid (Veldspar) 24 km"},
		{Text: "Asteroid Belt I"},
		{Text: "Station 2 AU"},
	}
	want := "Asteroid (Veldspar) 24 km\t24000 m\nAsteroid Belt I\nStation 2 AU\t+Inf m"
	if got := FormatRows(rows); got != want {
		t.Errorf("FormatRows = %q, want %q", got, want)
	}
}

func TestCopyRowsEmpty(t *testing.T) {
	if err := CopyRows(nil); !errors.Is(err, ErrNothingToCopy) {
		t.Errorf("Expected ErrNothingToCopy, got %v", err)
	}
}
