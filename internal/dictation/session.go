// Package dictation implements the one-shot record-then-transcribe flow: the
// caller streams audio into a buffer, stops, and receives the full transcript
// in a single text event.
package dictation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxstream/transcribe-gateway/internal/audio"
	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/loader"
	"github.com/voxstream/transcribe-gateway/internal/notify"
	"github.com/voxstream/transcribe-gateway/internal/observability"
)

// Session buffers one recording at a time. Stop hands the buffer to a
// background transcription; the session can start a new recording immediately,
// and the in-flight transcription still delivers its result.
type Session struct {
	mu        sync.Mutex
	buffer    []float32
	recording bool

	coord    *loader.Coordinator
	perform  loader.PerformLoad
	notifier notify.Notifier
	levels   *notify.LevelThrottle
	logger   zerolog.Logger

	wg sync.WaitGroup
}

// NewSession creates a dictation session and kicks off a background model
// preload so the first Stop does not pay the full load latency. levelInterval
// rate-limits audio-level notifications; zero keeps the default.
func NewSession(coord *loader.Coordinator, perform loader.PerformLoad, notifier notify.Notifier, levelInterval time.Duration, logger zerolog.Logger) *Session {
	s := &Session{
		coord:    coord,
		perform:  perform,
		notifier: notifier,
		levels:   notify.NewLevelThrottle(levelInterval),
		logger:   logger,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := coord.EnsureLoaded(context.Background(), perform, notifier); err != nil {
			logger.Warn().Err(err).Msg("Background model preload failed")
		}
	}()
	return s
}

// Start begins a new recording, discarding any buffered audio.
func (s *Session) Start() {
	s.mu.Lock()
	s.buffer = s.buffer[:0]
	s.recording = true
	s.mu.Unlock()
	observability.RecordSessionStart("dictation")
	s.notifier.Status("Listening...")
	s.logger.Info().Msg("Dictation recording started")
}

// Push appends 16kHz mono samples to the recording. Audio arriving outside a
// recording is dropped.
func (s *Session) Push(samples []float32) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return
	}
	s.buffer = append(s.buffer, samples...)
	s.mu.Unlock()
	observability.RecordSamplesIngested(len(samples))
	s.levels.Notify(s.notifier, audio.Level(samples))
}

// Stop ends the recording and transcribes the buffer in the background. The
// result arrives through the notifier as "Ready" followed by the text; a
// failure arrives as a single "Error: ..." status.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	wasRecording := s.recording
	s.recording = false
	buffer := append([]float32(nil), s.buffer...)
	s.buffer = s.buffer[:0]
	s.mu.Unlock()
	if wasRecording {
		observability.RecordSessionEnd("dictation")
	}

	if len(buffer) == 0 {
		s.notifier.Status("Error: no audio recorded")
		return
	}

	s.notifier.Status("Transcribing...")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.transcribe(ctx, buffer)
	}()
}

func (s *Session) transcribe(ctx context.Context, buffer []float32) {
	handle := s.coord.Handle()
	if _, ok := handle.Get(); !ok {
		// Preload lost the race or failed earlier; wait for (or retry) the
		// load before transcribing. Terminal statuses here come from the
		// coordinator, so a failure surfaces exactly one error.
		if err := s.coord.EnsureLoaded(ctx, s.perform, notify.Nop{}); err != nil {
			s.notifier.Status(fmt.Sprintf("Error: %v", err))
			return
		}
	}

	inst, ok := handle.Get()
	if !ok {
		s.notifier.Status("Error: model not loaded")
		return
	}

	started := time.Now()
	result, err := inst.Transcribe(ctx, buffer, engine.Params{
		Granularity: engine.GranularitySegment,
	})
	if err != nil {
		observability.RecordTranscription("dictation", false, time.Since(started))
		s.logger.Error().Err(err).Msg("Dictation transcription failed")
		s.notifier.Status(fmt.Sprintf("Error: %v", err))
		return
	}
	observability.RecordTranscription("dictation", true, time.Since(started))

	s.notifier.Status("Ready")
	s.notifier.Text(result.Text)
	s.logger.Info().
		Int("samples", len(buffer)).
		Int("chars", len(result.Text)).
		Dur("latency", time.Since(started)).
		Msg("Dictation transcription complete")
}

// Cancel discards the recording without transcribing it.
func (s *Session) Cancel() {
	s.mu.Lock()
	wasRecording := s.recording
	s.buffer = s.buffer[:0]
	s.recording = false
	s.mu.Unlock()
	if wasRecording {
		observability.RecordSessionEnd("dictation")
	}
	s.notifier.Status("Canceled")
	s.logger.Info().Msg("Dictation recording canceled")
}

// Wait blocks until background work (preload and in-flight transcriptions)
// has finished. Intended for orderly shutdown and tests.
func (s *Session) Wait() {
	s.wg.Wait()
}
