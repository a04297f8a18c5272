package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxstream/transcribe-gateway/internal/assets"
	"github.com/voxstream/transcribe-gateway/internal/config"
	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/loader"
	"github.com/voxstream/transcribe-gateway/internal/notify"
	"github.com/voxstream/transcribe-gateway/internal/observability"
)

// NewPerformLoad builds the load routine the coordinator runs: stage model
// assets, then construct the engine. A failed engine construction invalidates
// the staging marker so the next attempt re-stages from scratch, covering
// corrupt or truncated downloads.
func NewPerformLoad(cfg *config.Config) loader.PerformLoad {
	return func(ctx context.Context, n notify.Notifier) (engine.Engine, error) {
		started := time.Now()

		n.Status("Checking assets...")
		dir, err := assets.Ensure(ctx, assets.Config{
			Dir:       cfg.ModelDir,
			Files:     cfg.ModelFiles,
			SourceURL: cfg.ModelSourceURL,
		})
		if err != nil {
			observability.RecordLoadAttempt(false, time.Since(started))
			return nil, fmt.Errorf("stream: stage model assets: %w", err)
		}

		n.Status("Loading model...")
		eng, err := engine.New(dir, engine.Quantization(cfg.ModelQuantization))
		if err != nil {
			observability.RecordLoadAttempt(false, time.Since(started))
			if invErr := assets.Invalidate(dir); invErr != nil {
				log.Warn().Err(invErr).Str("dir", dir).Msg("Failed to invalidate model assets")
			}
			return nil, fmt.Errorf("stream: initialize engine: %w", err)
		}

		observability.RecordLoadAttempt(true, time.Since(started))
		return eng, nil
	}
}
