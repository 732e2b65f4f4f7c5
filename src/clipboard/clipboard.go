package clipboard

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.design/x/clipboard"

	"asteroid-miner/src/overview"
)

// ErrNothingToCopy is returned when there are no rows to copy.
var ErrNothingToCopy = errors.New("overview is empty, nothing to copy")

var (
	writeMu  sync.Mutex
	initOnce sync.Once
	initErr  error
)

// Init prepares the system clipboard. It is safe to call repeatedly.
func Init() error {
	initOnce.Do(func() { initErr = clipboard.Init() })
	return initErr
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	if err := Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// FormatRows renders rows one per line, with the parsed distance in meters appended
// where one was read.
func FormatRows(rows []overview.Row) string {
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.Text)
		if d, ok := r.Distance(); ok {
			fmt.Fprintf(&b, "\t%.0f m", d.Meters)
		}
	}
	return b.String()
}

// CopyRows puts the formatted rows on the clipboard.
func CopyRows(rows []overview.Row) error {
	if len(rows) == 0 {
		return ErrNothingToCopy
	}
	return Write(FormatRows(rows))
}
