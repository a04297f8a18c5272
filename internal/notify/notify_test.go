package notify

import (
	"sync"
	"testing"
	"time"
)

// Recorder collects notifications for assertions.
type Recorder struct {
	mu     sync.Mutex
	Levels []float64
}

func (r *Recorder) Status(string)   {}
func (r *Recorder) Text(string)     {}
func (r *Recorder) Subtitle(string) {}
func (r *Recorder) AudioLevel(level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Levels = append(r.Levels, level)
}

func (r *Recorder) LevelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Levels)
}

func TestLevelThrottle_SuppressesBursts(t *testing.T) {
	throttle := NewLevelThrottle(50 * time.Millisecond)

	// Fixed clock: all calls happen at the same instant except where advanced.
	current := time.Unix(0, 0)
	throttle.now = func() time.Time { return current }

	rec := &Recorder{}

	if !throttle.Notify(rec, 0.1) {
		t.Fatal("Expected first notification to pass")
	}
	for i := 0; i < 10; i++ {
		if throttle.Notify(rec, 0.2) {
			t.Fatal("Expected burst notifications to be suppressed")
		}
	}

	current = current.Add(51 * time.Millisecond)
	if !throttle.Notify(rec, 0.3) {
		t.Fatal("Expected notification after interval elapsed")
	}

	if rec.LevelCount() != 2 {
		t.Errorf("Expected 2 forwarded levels, got %d", rec.LevelCount())
	}
}

func TestLevelThrottle_DefaultInterval(t *testing.T) {
	throttle := NewLevelThrottle(0)
	if throttle.interval != 50*time.Millisecond {
		t.Errorf("Expected default interval 50ms, got %v", throttle.interval)
	}
}
