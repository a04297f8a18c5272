package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcribe_gateway_active_sessions",
		Help: "Number of active transcription sessions",
	}, []string{"kind"}) // kind: "live" or "dictation"

	totalSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribe_gateway_sessions_total",
		Help: "Total number of transcription sessions",
	}, []string{"kind"})

	// Model load metrics
	loadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribe_gateway_model_load_attempts_total",
		Help: "Total number of model load attempts",
	}, []string{"status"})

	loadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcribe_gateway_model_load_duration_seconds",
		Help:    "Duration of model load attempts in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// Windowing metrics
	windowsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcribe_gateway_windows_emitted_total",
		Help: "Total audio windows submitted for transcription",
	})

	windowsGated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcribe_gateway_windows_gated_total",
		Help: "Total audio windows skipped by the silence gate",
	})

	// Inference metrics
	transcriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribe_gateway_transcriptions_total",
		Help: "Total transcription requests processed",
	}, []string{"kind", "status"})

	transcriptionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcribe_gateway_transcription_latency_seconds",
		Help:    "Inference latency per transcription request in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"kind"})

	subtitleChars = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcribe_gateway_subtitle_chars_total",
		Help: "Total characters emitted as incremental subtitles",
	})

	// Audio metrics
	samplesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcribe_gateway_samples_ingested_total",
		Help: "Total audio samples pushed into the gateway",
	})
)

// RecordSessionStart records the start of a session of the given kind.
func RecordSessionStart(kind string) {
	activeSessions.WithLabelValues(kind).Inc()
	totalSessions.WithLabelValues(kind).Inc()
}

// RecordSessionEnd records the end of a session of the given kind.
func RecordSessionEnd(kind string) {
	activeSessions.WithLabelValues(kind).Dec()
}

// RecordLoadAttempt records the outcome and duration of a model load.
func RecordLoadAttempt(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	loadAttempts.WithLabelValues(status).Inc()
	loadDuration.Observe(duration.Seconds())
}

// RecordWindowEmitted records a window handed to the worker queue.
func RecordWindowEmitted() {
	windowsEmitted.Inc()
}

// RecordWindowGated records a window suppressed by the silence gate.
func RecordWindowGated() {
	windowsGated.Inc()
}

// RecordTranscription records one transcription request outcome.
func RecordTranscription(kind string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	transcriptions.WithLabelValues(kind, status).Inc()
	transcriptionLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

// RecordSubtitle records emitted incremental text.
func RecordSubtitle(text string) {
	subtitleChars.Add(float64(len(text)))
}

// RecordSamplesIngested records pushed audio samples.
func RecordSamplesIngested(n int) {
	samplesIngested.Add(float64(n))
}
