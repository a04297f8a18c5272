package notify

import (
	"sync"
	"time"
)

// Notifier is the capability interface every surface reports through.
// Implementations must be safe for concurrent use; callbacks are invoked
// from capture, loader, and worker goroutines.
type Notifier interface {
	// Status reports a human-readable state change ("Ready", "Listening...",
	// "Error: <detail>").
	Status(text string)

	// Text delivers a complete one-shot transcription result.
	Text(text string)

	// Subtitle delivers an incremental streaming transcription result.
	Subtitle(text string)

	// AudioLevel reports the current input level in [0.0, 1.0].
	AudioLevel(level float64)
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) Status(string)      {}
func (Nop) Text(string)        {}
func (Nop) Subtitle(string)    {}
func (Nop) AudioLevel(float64) {}

// LevelThrottle rate-limits audio-level notifications so a real-time capture
// path does not flood the notifier. Zero interval falls back to 50ms.
type LevelThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	lastSent time.Time
	now      func() time.Time
}

// NewLevelThrottle creates a throttle emitting at most once per interval.
func NewLevelThrottle(interval time.Duration) *LevelThrottle {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &LevelThrottle{interval: interval, now: time.Now}
}

// Notify forwards level to n.AudioLevel if enough time has passed since the
// previous forwarded level. Returns whether the level was forwarded.
func (t *LevelThrottle) Notify(n Notifier, level float64) bool {
	t.mu.Lock()
	now := t.now()
	if now.Sub(t.lastSent) < t.interval {
		t.mu.Unlock()
		return false
	}
	t.lastSent = now
	t.mu.Unlock()

	n.AudioLevel(level)
	return true
}
