package stream

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/voxstream/transcribe-gateway/internal/audio"
	"github.com/voxstream/transcribe-gateway/internal/config"
	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/loader"
	"github.com/voxstream/transcribe-gateway/internal/notify"
	"github.com/voxstream/transcribe-gateway/internal/observability"
)

// maxUploadBytes caps /transcribe request bodies (about an hour of 16kHz
// PCM16 WAV).
const maxUploadBytes = 128 << 20

type transcribeResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// TranscribeHandler accepts a WAV body and returns the full transcript. It
// shares the engine guard with live sessions, so requests queue behind
// streaming windows.
func TranscribeHandler(cfg *config.Config, coord *loader.Coordinator, perform loader.PerformLoad) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		if len(body) > maxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}

		samples, rate, err := audio.DecodeWAV(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid WAV: "+err.Error())
			return
		}
		if len(samples) == 0 {
			writeError(w, http.StatusBadRequest, "no audio in recording")
			return
		}
		if rate != audio.SampleRate {
			samples = audio.Resample(samples, rate, audio.SampleRate)
		}

		if err := coord.EnsureLoaded(r.Context(), perform, notify.Nop{}); err != nil {
			writeError(w, http.StatusServiceUnavailable, "model unavailable: "+err.Error())
			return
		}
		inst, ok := coord.Handle().Get()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, engine.ErrNotLoaded.Error())
			return
		}

		observability.RecordSessionStart("dictation")
		defer observability.RecordSessionEnd("dictation")

		started := time.Now()
		result, err := inst.Transcribe(r.Context(), samples, engine.Params{
			Granularity: engine.GranularitySegment,
		})
		if err != nil {
			observability.RecordTranscription("dictation", false, time.Since(started))
			writeError(w, http.StatusInternalServerError, "transcription failed: "+err.Error())
			return
		}
		observability.RecordTranscription("dictation", true, time.Since(started))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(transcribeResponse{Text: result.Text})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
