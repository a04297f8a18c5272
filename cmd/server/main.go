package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxstream/transcribe-gateway/internal/assets"
	"github.com/voxstream/transcribe-gateway/internal/config"
	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/loader"
	"github.com/voxstream/transcribe-gateway/internal/notify"
	"github.com/voxstream/transcribe-gateway/internal/observability"
	"github.com/voxstream/transcribe-gateway/internal/stream"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("model_dir", cfg.ModelDir).
		Str("quantization", cfg.ModelQuantization).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Transcribe Gateway starting")

	// One engine handle and one load coordinator for the whole process; every
	// surface shares the serialized engine behind them.
	handle := engine.NewHandle()
	coord := loader.NewCoordinator(handle, time.Duration(cfg.LoadWaitTimeoutSeconds)*time.Second)
	perform := stream.NewPerformLoad(cfg)

	// Warm the model before the first client connects. Failures are not
	// fatal: the first session retries the load and reports it.
	go func() {
		if err := coord.EnsureLoaded(context.Background(), perform, notify.Nop{}); err != nil {
			logger.Warn().Err(err).Msg("Model preload failed; will retry on first session")
		} else {
			logger.Info().Msg("Model preloaded")
		}
	}()

	// Create HTTP server
	mux := http.NewServeMux()

	// Live captioning and dictation over WebSocket
	mux.HandleFunc("/live", stream.LiveHandler(cfg, coord, perform))

	// One-shot WAV transcription
	mux.HandleFunc("/transcribe", stream.TranscribeHandler(cfg, coord, perform))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness: assets staged (or stageable) and the load not wedged in a
	// failed state.
	assetsCheck := func(ctx context.Context) (bool, error) {
		if assets.Staged(cfg.ModelDir) {
			return true, nil
		}
		if cfg.ModelSourceURL != "" {
			// Not staged yet, but the first load can fetch them.
			return true, nil
		}
		return false, fmt.Errorf("model assets missing from %s and no source URL configured", cfg.ModelDir)
	}

	engineCheck := func(ctx context.Context) (bool, error) {
		state, reason := coord.State()
		if state == loader.StateFailed {
			return false, fmt.Errorf("model load failed: %s", reason)
		}
		return true, nil
	}

	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"model_assets": assetsCheck,
		"engine":       engineCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. Write timeout stays generous because
	// one-shot transcriptions can queue behind live sessions.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/live", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if inst, ok := handle.Get(); ok {
		if err := inst.Close(); err != nil {
			logger.Warn().Err(err).Msg("Engine close failed")
		}
	}

	logger.Info().Msg("Server exited gracefully")
}
