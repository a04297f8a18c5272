// Package stream exposes the transcription core over HTTP: a WebSocket
// endpoint for live captioning and dictation, and a one-shot endpoint for
// uploaded recordings.
package stream

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxstream/transcribe-gateway/internal/audio"
	"github.com/voxstream/transcribe-gateway/internal/caption"
	"github.com/voxstream/transcribe-gateway/internal/config"
	"github.com/voxstream/transcribe-gateway/internal/dictation"
	"github.com/voxstream/transcribe-gateway/internal/loader"
	"github.com/voxstream/transcribe-gateway/internal/observability"
)

var upgrader = websocket.Upgrader{
	// Clients are local apps and test harnesses, not browsers; origin
	// checking would only get in their way.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// frame is a client-to-server control message.
type frame struct {
	Type string `json:"type"`
	// Mode selects the session flavor on a start frame: "caption" (default)
	// streams incremental subtitles, "dictation" buffers until stop.
	Mode string `json:"mode,omitempty"`
	// SampleRate describes the PCM in a chunk frame. Zero means 16000.
	SampleRate int `json:"sample_rate,omitempty"`
	// UpdateIntervalSeconds overrides the caption window interval on start
	// and set_interval frames.
	UpdateIntervalSeconds float64 `json:"update_interval_seconds,omitempty"`
	// Payload is base64-encoded little-endian PCM16 on chunk frames.
	Payload string `json:"payload,omitempty"`
}

// liveConn is the per-connection state of the /live endpoint. The read loop
// is the only goroutine touching it, so no locking is needed beyond the
// shared write mutex inside the notifier.
type liveConn struct {
	cfg      *config.Config
	coord    *loader.Coordinator
	perform  loader.PerformLoad
	notifier *wsNotifier
	logger   zerolog.Logger

	captions *caption.Session
	dict     *dictation.Session
	mode     string
}

// LiveHandler upgrades to WebSocket and speaks the control-frame protocol:
// start, chunk, set_interval, stop, cancel, ping.
func LiveHandler(cfg *config.Config, coord *loader.Coordinator, perform loader.PerformLoad) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			return
		}
		defer conn.Close()

		sessionID := observability.NewSessionID()
		logger := observability.WithSessionID(sessionID)
		logger.Info().Str("remote", r.RemoteAddr).Msg("Live connection opened")

		var writeMu sync.Mutex
		lc := &liveConn{
			cfg:      cfg,
			coord:    coord,
			perform:  perform,
			notifier: newWSNotifier(&writeMu, conn, logger),
			logger:   logger,
		}
		lc.readLoop(r.Context(), conn)
		lc.teardown()
		logger.Info().Msg("Live connection closed")
	}
}

func (lc *liveConn) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				lc.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch f.Type {
		case "start":
			lc.handleStart(ctx, f)
		case "chunk":
			lc.handleChunk(f)
		case "set_interval":
			lc.handleSetInterval(f)
		case "stop":
			lc.handleStop(ctx)
		case "cancel":
			lc.handleCancel()
		case "ping":
			lc.notifier.send(event{Type: "pong"})
		default:
			lc.logger.Warn().Str("frame", f.Type).Msg("Unknown control frame")
			lc.notifier.Status("Error: unknown control frame " + f.Type)
		}
	}
}

func (lc *liveConn) handleStart(ctx context.Context, f frame) {
	// A start while a session is running restarts it.
	lc.closeCaptions()

	switch f.Mode {
	case "dictation":
		lc.mode = "dictation"
		if lc.dict == nil {
			interval := time.Duration(lc.cfg.AudioLevelIntervalMs) * time.Millisecond
			lc.dict = dictation.NewSession(lc.coord, lc.perform, lc.notifier, interval, lc.logger)
		}
		lc.dict.Start()

	case "", "caption":
		lc.mode = "caption"
		// The captioning flow needs the model before any window can be
		// transcribed; block the loop here rather than stream audio into a
		// worker that drops everything. Load failures notify and bail.
		if err := lc.coord.EnsureLoaded(ctx, lc.perform, lc.notifier); err != nil {
			lc.logger.Error().Err(err).Msg("Model load failed for caption session")
			return
		}
		wcfg := caption.Config{
			UpdateIntervalSeconds: lc.cfg.UpdateIntervalSeconds,
			OverlapSeconds:        lc.cfg.OverlapRetainedSeconds,
			SilenceRMSThreshold:   lc.cfg.SilenceRMSThreshold,
			BoundaryMarginSeconds: lc.cfg.BoundaryMarginSeconds,
			AudioLevelInterval:    time.Duration(lc.cfg.AudioLevelIntervalMs) * time.Millisecond,
		}
		if f.UpdateIntervalSeconds > 0 {
			wcfg.UpdateIntervalSeconds = f.UpdateIntervalSeconds
		}
		lc.captions = caption.NewSession(wcfg, lc.coord.Handle(), lc.notifier, lc.logger)
		lc.captions.Start(ctx)

	default:
		lc.notifier.Status("Error: unknown session mode " + f.Mode)
	}
}

func (lc *liveConn) handleChunk(f frame) {
	raw, err := base64.StdEncoding.DecodeString(f.Payload)
	if err != nil {
		lc.notifier.Status("Error: malformed chunk payload")
		return
	}
	samples, err := audio.DecodePCM16LE(raw)
	if err != nil {
		lc.notifier.Status("Error: malformed chunk payload")
		return
	}
	if f.SampleRate > 0 && f.SampleRate != audio.SampleRate {
		samples = audio.Resample(samples, f.SampleRate, audio.SampleRate)
	}

	switch {
	case lc.mode == "caption" && lc.captions != nil:
		lc.captions.Push(samples)
	case lc.mode == "dictation" && lc.dict != nil:
		lc.dict.Push(samples)
	default:
		// Audio before start has nowhere to go.
	}
}

func (lc *liveConn) handleSetInterval(f frame) {
	if lc.captions == nil {
		lc.notifier.Status("Error: no caption session")
		return
	}
	if f.UpdateIntervalSeconds <= 0 {
		lc.notifier.Status("Error: interval must be positive")
		return
	}
	lc.captions.SetUpdateInterval(f.UpdateIntervalSeconds)
}

func (lc *liveConn) handleStop(ctx context.Context) {
	switch lc.mode {
	case "caption":
		lc.closeCaptions()
	case "dictation":
		if lc.dict != nil {
			lc.dict.Stop(ctx)
		}
	}
	lc.mode = ""
}

func (lc *liveConn) handleCancel() {
	if lc.mode == "dictation" && lc.dict != nil {
		lc.dict.Cancel()
	}
	lc.mode = ""
}

func (lc *liveConn) closeCaptions() {
	if lc.captions != nil {
		lc.captions.Close()
		lc.captions = nil
	}
}

func (lc *liveConn) teardown() {
	lc.closeCaptions()
	if lc.dict != nil {
		// Let an in-flight dictation transcription finish; its events just
		// land on a closed connection.
		lc.dict.Wait()
	}
}
