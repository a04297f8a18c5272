package dictation

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/loader"
	"github.com/voxstream/transcribe-gateway/internal/notify"
)

type fixedEngine struct {
	text string
	err  error
}

func (e *fixedEngine) Transcribe(ctx context.Context, samples []float32, params engine.Params) (engine.Result, error) {
	if e.err != nil {
		return engine.Result{}, e.err
	}
	return engine.Result{Text: e.text}, nil
}

func (e *fixedEngine) Close() error { return nil }

type eventRecorder struct {
	mu       sync.Mutex
	statuses []string
	texts    []string
}

func (r *eventRecorder) Status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

func (r *eventRecorder) Text(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *eventRecorder) Subtitle(string)    {}
func (r *eventRecorder) AudioLevel(float64) {}

func (r *eventRecorder) hasStatus(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		if s == want {
			return true
		}
	}
	return false
}

func (r *eventRecorder) errorStatuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []string
	for _, s := range r.statuses {
		if strings.HasPrefix(s, "Error:") {
			errs = append(errs, s)
		}
	}
	return errs
}

func (r *eventRecorder) allTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func newSessionWith(t *testing.T, eng engine.Engine, rec *eventRecorder) *Session {
	t.Helper()
	coord := loader.NewCoordinator(engine.NewHandle(), 0)
	perform := func(ctx context.Context, n notify.Notifier) (engine.Engine, error) {
		return eng, nil
	}
	return NewSession(coord, perform, rec, 0, zerolog.Nop())
}

func tone(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(float64(i)*0.05))
	}
	return samples
}

func TestSession_RecordThenTranscribe(t *testing.T) {
	rec := &eventRecorder{}
	s := newSessionWith(t, &fixedEngine{text: "hello from dictation"}, rec)

	s.Start()
	s.Push(tone(16000))
	s.Stop(context.Background())
	s.Wait()

	for _, want := range []string{"Listening...", "Transcribing...", "Ready"} {
		if !rec.hasStatus(want) {
			t.Errorf("Expected status %q, got %v", want, rec.statuses)
		}
	}
	texts := rec.allTexts()
	if len(texts) != 1 || texts[0] != "hello from dictation" {
		t.Fatalf("Expected single text result, got %v", texts)
	}
}

func TestSession_EmptyRecordingIsError(t *testing.T) {
	rec := &eventRecorder{}
	s := newSessionWith(t, &fixedEngine{text: "unused"}, rec)

	s.Start()
	s.Stop(context.Background())
	s.Wait()

	if !rec.hasStatus("Error: no audio recorded") {
		t.Errorf("Expected empty-recording error, got %v", rec.statuses)
	}
	if texts := rec.allTexts(); len(texts) != 0 {
		t.Errorf("Expected no text for empty recording, got %v", texts)
	}
}

func TestSession_CancelDiscardsBuffer(t *testing.T) {
	rec := &eventRecorder{}
	s := newSessionWith(t, &fixedEngine{text: "unused"}, rec)

	s.Start()
	s.Push(tone(16000))
	s.Cancel()
	s.Wait()

	if !rec.hasStatus("Canceled") {
		t.Errorf("Expected Canceled status, got %v", rec.statuses)
	}
	if texts := rec.allTexts(); len(texts) != 0 {
		t.Errorf("Expected no text after cancel, got %v", texts)
	}

	// The buffer was cleared, so an immediate stop has nothing to transcribe.
	s.Stop(context.Background())
	s.Wait()
	if !rec.hasStatus("Error: no audio recorded") {
		t.Errorf("Expected empty-recording error after cancel, got %v", rec.statuses)
	}
}

func TestSession_DropsAudioOutsideRecording(t *testing.T) {
	rec := &eventRecorder{}
	s := newSessionWith(t, &fixedEngine{text: "unused"}, rec)

	s.Push(tone(16000))
	s.Start()
	s.Stop(context.Background())
	s.Wait()

	if !rec.hasStatus("Error: no audio recorded") {
		t.Errorf("Expected audio before Start to be dropped, got %v", rec.statuses)
	}
}

func TestSession_TranscriptionFailureIsSingleError(t *testing.T) {
	rec := &eventRecorder{}
	s := newSessionWith(t, &fixedEngine{err: errors.New("inference exploded")}, rec)

	s.Start()
	s.Push(tone(16000))
	s.Stop(context.Background())
	s.Wait()

	errs := rec.errorStatuses()
	if len(errs) != 1 {
		t.Fatalf("Expected exactly 1 error status, got %v", errs)
	}
	if !strings.Contains(errs[0], "inference exploded") {
		t.Errorf("Expected error detail in status, got %q", errs[0])
	}
	if texts := rec.allTexts(); len(texts) != 0 {
		t.Errorf("Expected no text on failure, got %v", texts)
	}
}
