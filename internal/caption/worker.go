package caption

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/notify"
	"github.com/voxstream/transcribe-gateway/internal/observability"
)

const (
	// boundaryMarginSeconds loosens the dedup cutoff so a segment starting a
	// hair before the committed cursor is not discarded along with the
	// genuinely re-heard overlap.
	boundaryMarginSeconds = 0.05
	// fallbackAdvanceSeconds is the nominal cursor advance applied when the
	// engine returns text without segment timing.
	fallbackAdvanceSeconds = 2.0
)

// Worker consumes windows in FIFO order, transcribes each one, drops the
// portion already committed by earlier windows, and publishes the surviving
// text as subtitles. A single goroutine owns the commit cursor, so ordering
// and monotonicity need no further synchronization.
type Worker struct {
	queue    *windowQueue
	handle   *engine.Handle
	notifier notify.Notifier
	logger   zerolog.Logger
	margin   float64

	lastCommittedEnd float64

	wg sync.WaitGroup
}

// NewWorker wires a worker to the shared engine handle. The worker does not
// start until Run is called.
func NewWorker(handle *engine.Handle, notifier notify.Notifier, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:    newWindowQueue(),
		handle:   handle,
		notifier: notifier,
		logger:   logger,
		margin:   boundaryMarginSeconds,
	}
}

// Submit enqueues a window for transcription without blocking.
func (w *Worker) Submit(win Window) {
	w.queue.Push(win)
}

// Run starts the consumer goroutine. ctx cancellation stops processing after
// the current window; Stop waits for the backlog to drain instead.
func (w *Worker) Run(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			win, ok := w.queue.Pop()
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			w.process(ctx, win)
		}
	}()
}

// Stop closes the queue and blocks until queued windows have been processed.
func (w *Worker) Stop() {
	w.queue.Close()
	w.wg.Wait()
}

// CommittedEnd reports the absolute session time up to which text has been
// published.
func (w *Worker) CommittedEnd() float64 {
	return w.lastCommittedEnd
}

func (w *Worker) process(ctx context.Context, win Window) {
	inst, ok := w.handle.Get()
	if !ok {
		// The model unloaded mid-session; drop the window rather than stall
		// the stream behind a reload.
		w.logger.Warn().Msg("Dropping caption window: engine not loaded")
		return
	}

	started := time.Now()
	result, err := inst.Transcribe(ctx, win.Samples, engine.Params{
		Granularity: engine.GranularityWord,
	})
	if err != nil {
		observability.RecordTranscription("live", false, time.Since(started))
		w.logger.Error().Err(err).Float64("window_start", win.StartSeconds).Msg("Window transcription failed")
		w.notifier.Status("Error: transcription failed")
		return
	}
	observability.RecordTranscription("live", true, time.Since(started))

	text, advanced := w.commit(win, result)
	if text == "" {
		return
	}
	observability.RecordSubtitle(text)
	w.notifier.Subtitle(text)
	w.logger.Debug().
		Float64("window_start", win.StartSeconds).
		Float64("committed_end", advanced).
		Int("chars", len(text)).
		Msg("Subtitle committed")
}

// commit filters out segments that fall before the committed cursor, joins
// the survivors, and advances the cursor. Returns the committed text and the
// new cursor position.
func (w *Worker) commit(win Window, result engine.Result) (string, float64) {
	if len(result.Segments) == 0 {
		text := strings.TrimSpace(result.Text)
		if text == "" {
			return "", w.lastCommittedEnd
		}
		// No timing information: publish once and advance by a nominal
		// window's worth so the next overlap does not repeat it.
		w.advance(win.StartSeconds + fallbackAdvanceSeconds)
		return text, w.lastCommittedEnd
	}

	var parts []string
	maxEnd := w.lastCommittedEnd
	for _, seg := range result.Segments {
		absStart := win.StartSeconds + float64(seg.Start)
		absEnd := win.StartSeconds + float64(seg.End)
		if absStart < w.lastCommittedEnd-w.margin {
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		if absEnd > maxEnd {
			maxEnd = absEnd
		}
	}
	if len(parts) == 0 {
		return "", w.lastCommittedEnd
	}
	w.advance(maxEnd)
	return strings.Join(parts, " "), w.lastCommittedEnd
}

// advance moves the commit cursor forward; it never rewinds.
func (w *Worker) advance(to float64) {
	if to > w.lastCommittedEnd {
		w.lastCommittedEnd = to
	}
}
