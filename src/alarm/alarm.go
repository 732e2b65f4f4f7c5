// Package alarm sounds an audible warning when the bot halts on a hostile.
package alarm

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// tone is a square-wave oscillator of fixed length.
type tone struct {
	freq     float64
	phase    float64
	duration int
	position int
	rate     beep.SampleRate
}

func newTone(freq float64, d time.Duration, rate beep.SampleRate) beep.Streamer {
	return &tone{freq: freq, duration: rate.N(d), rate: rate}
}

func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.position >= t.duration {
			return i, i > 0
		}
		val := -1.0
		if t.phase < 0.5 {
			val = 1.0
		}
		samples[i][0], samples[i][1] = val, val
		t.phase += t.freq / float64(t.rate)
		t.phase -= math.Floor(t.phase)
		t.position++
	}
	return len(samples), true
}

func (t *tone) Err() error { return nil }

// Siren alternates two tones for the given number of cycles.
func Siren(cycles int, rate beep.SampleRate) beep.Streamer {
	var parts []beep.Streamer
	for i := 0; i < cycles; i++ {
		parts = append(parts,
			newTone(880, 250*time.Millisecond, rate),
			newTone(660, 250*time.Millisecond, rate),
		)
	}
	return &effects.Volume{Streamer: beep.Seq(parts...), Base: 2, Volume: -2}
}

// Alarm plays the siren on the default audio device. The device is opened on first use;
// a machine without audio logs once and stays silent.
type Alarm struct {
	mu          sync.Mutex
	enabled     bool
	initialized bool
	failed      bool
}

func New(enabled bool) *Alarm { return &Alarm{enabled: enabled} }

// Sound plays the siren without blocking.
func (a *Alarm) Sound() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled || a.failed {
		return
	}
	if !a.initialized {
		if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
			log.Printf("Warning: Alarm disabled, audio unavailable: %v", err)
			a.failed = true
			return
		}
		a.initialized = true
	}
	speaker.Play(Siren(3, sampleRate))
}

// Close releases the audio device.
func (a *Alarm) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	a.initialized = false
	return nil
}

func (a *Alarm) String() string {
	return fmt.Sprintf("alarm(enabled=%v)", a.enabled)
}
