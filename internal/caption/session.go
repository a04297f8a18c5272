package caption

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voxstream/transcribe-gateway/internal/audio"
	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/notify"
	"github.com/voxstream/transcribe-gateway/internal/observability"
)

// Session is a live caption stream: audio pushed in, subtitles and level
// updates pushed out through the notifier. Windows are transcribed in strict
// arrival order by a single worker.
type Session struct {
	windower *Windower
	worker   *Worker
	notifier notify.Notifier
	levels   *notify.LevelThrottle
	logger   zerolog.Logger
	cancel   context.CancelFunc
}

// NewSession builds a session around the shared engine handle. Call Start
// before pushing audio and Close when the stream ends.
func NewSession(cfg Config, handle *engine.Handle, notifier notify.Notifier, logger zerolog.Logger) *Session {
	s := &Session{
		worker:   NewWorker(handle, notifier, logger),
		notifier: notifier,
		levels:   notify.NewLevelThrottle(cfg.AudioLevelInterval),
		logger:   logger,
	}
	if cfg.BoundaryMarginSeconds > 0 {
		s.worker.margin = cfg.BoundaryMarginSeconds
	}
	s.windower = NewWindower(cfg, s.worker.Submit)
	return s
}

// Start launches the transcription worker and announces the session.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	observability.RecordSessionStart("live")
	s.worker.Run(ctx)
	s.notifier.Status("Listening...")
	s.logger.Info().Msg("Caption session started")
}

// Push feeds 16kHz mono samples into the session.
func (s *Session) Push(samples []float32) {
	s.levels.Notify(s.notifier, audio.Level(samples))
	s.windower.Push(samples)
}

// SetUpdateInterval adjusts how often new windows are emitted.
func (s *Session) SetUpdateInterval(seconds float64) {
	s.windower.SetUpdateInterval(seconds)
	s.logger.Info().Float64("interval_seconds", seconds).Msg("Update interval changed")
}

// Close stops accepting audio and waits for already-queued windows to finish,
// so the tail of the stream is not lost.
func (s *Session) Close() {
	s.worker.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	observability.RecordSessionEnd("live")
	s.logger.Info().Float64("committed_end", s.worker.CommittedEnd()).Msg("Caption session closed")
}
