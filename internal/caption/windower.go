package caption

import (
	"sync"
	"time"

	"github.com/voxstream/transcribe-gateway/internal/audio"
	"github.com/voxstream/transcribe-gateway/internal/observability"
)

// Config tunes the caption pipeline: how audio is sliced into windows, how
// dedup treats window boundaries, and how often level updates go out.
type Config struct {
	// UpdateIntervalSeconds is how much new audio must accumulate since the
	// last emission before another window is produced.
	UpdateIntervalSeconds float64
	// OverlapSeconds is how much trailing audio is retained after each
	// emission so the next window overlaps the previous one.
	OverlapSeconds float64
	// SilenceRMSThreshold gates windows whose RMS falls at or below it.
	SilenceRMSThreshold float64
	// BoundaryMarginSeconds loosens the worker's dedup cutoff at window
	// boundaries. Zero keeps the default.
	BoundaryMarginSeconds float64
	// AudioLevelInterval rate-limits audio-level notifications. Zero keeps
	// the default.
	AudioLevelInterval time.Duration
}

// DefaultConfig matches the tuning used by the live caption session.
func DefaultConfig() Config {
	return Config{
		UpdateIntervalSeconds: 2.0,
		OverlapSeconds:        3.0,
		SilenceRMSThreshold:   0.002,
		BoundaryMarginSeconds: boundaryMarginSeconds,
	}
}

// Windower accumulates 16kHz mono samples and emits overlapping windows to a
// sink whenever enough new audio has arrived. Silent windows are gated (not
// emitted) but still advance the emission cursor, so a long quiet stretch does
// not produce a burst of stale windows when speech resumes.
type Windower struct {
	mu              sync.Mutex
	buffer          []float32
	totalSamples    int
	lastProcess     int
	intervalSamples int
	overlapSamples  int
	rmsThreshold    float64
	sink            func(Window)
}

// NewWindower returns a windower that forwards emitted windows to sink.
func NewWindower(cfg Config, sink func(Window)) *Windower {
	return &Windower{
		intervalSamples: int(cfg.UpdateIntervalSeconds * audio.SampleRate),
		overlapSamples:  int(cfg.OverlapSeconds * audio.SampleRate),
		rmsThreshold:    cfg.SilenceRMSThreshold,
		sink:            sink,
	}
}

// Push appends samples and emits a window if the update interval has elapsed.
func (w *Windower) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, samples...)
	w.totalSamples += len(samples)
	observability.RecordSamplesIngested(len(samples))

	if w.totalSamples-w.lastProcess < w.intervalSamples {
		return
	}

	// Absolute time of buffer[0]: everything before it has been trimmed away.
	start := float64(w.totalSamples-len(w.buffer)) / audio.SampleRate

	if audio.RMS(w.buffer) > w.rmsThreshold {
		win := Window{
			Samples:      append([]float32(nil), w.buffer...),
			StartSeconds: start,
		}
		observability.RecordWindowEmitted()
		w.sink(win)
	} else {
		observability.RecordWindowGated()
	}

	// The cursor advances whether or not the window was emitted.
	w.lastProcess = w.totalSamples

	if len(w.buffer) > w.overlapSamples {
		keep := w.buffer[len(w.buffer)-w.overlapSamples:]
		w.buffer = append(w.buffer[:0], keep...)
	}
}

// SetUpdateInterval changes the emission interval at runtime. Values at or
// below zero are ignored.
func (w *Windower) SetUpdateInterval(seconds float64) {
	if seconds <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.intervalSamples = int(seconds * audio.SampleRate)
}

// Reset discards buffered audio and rewinds the session timeline.
func (w *Windower) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = w.buffer[:0]
	w.totalSamples = 0
	w.lastProcess = 0
}
