package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxstream/transcribe-gateway/internal/resilience"
)

// stagingMarker is written after a successful staging pass. A missing marker
// means the directory is incomplete (e.g. interrupted mid-download) and the
// assets will be re-staged from scratch.
const stagingMarker = ".staging_complete"

// Config describes where model assets live and where to fetch them from.
type Config struct {
	// Dir is the local directory holding the staged model files.
	Dir string

	// Files are the file names expected inside Dir.
	Files []string

	// SourceURL, when set, is the base URL the files are downloaded from.
	// When empty the files must already be present (pre-provisioned).
	SourceURL string

	// DownloadTimeout bounds a single file download. Zero means 10 minutes.
	DownloadTimeout time.Duration
}

// Staged reports whether dir holds a completed install.
func Staged(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, stagingMarker))
	return err == nil
}

// Invalidate removes the completeness marker so the next Ensure re-stages.
// Called when the engine rejects the installed files: the install is
// presumed corrupt even though staging completed.
func Invalidate(dir string) error {
	err := os.Remove(filepath.Join(dir, stagingMarker))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assets: invalidate install: %w", err)
	}
	log.Warn().Str("dir", dir).Msg("model install invalidated, next load re-stages")
	return nil
}

// Ensure makes sure a complete model install exists and returns its
// directory. An unmarked directory is wiped and re-staged.
func Ensure(ctx context.Context, cfg Config) (string, error) {
	if cfg.Dir == "" {
		return "", errors.New("assets: model directory not configured")
	}
	if len(cfg.Files) == 0 {
		return "", errors.New("assets: no model files configured")
	}

	if Staged(cfg.Dir) {
		if err := verify(cfg); err == nil {
			return cfg.Dir, nil
		}
		// Marker present but files missing; treat as torn install.
		log.Warn().Str("dir", cfg.Dir).Msg("staged model directory failed verification")
	}

	if _, err := os.Stat(cfg.Dir); err == nil {
		log.Info().Str("dir", cfg.Dir).Msg("removing incomplete model directory for re-staging")
		if err := os.RemoveAll(cfg.Dir); err != nil {
			return "", fmt.Errorf("assets: remove incomplete install: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("assets: create model directory: %w", err)
	}

	if cfg.SourceURL == "" {
		return "", fmt.Errorf("assets: model files missing from %s and no source URL configured", cfg.Dir)
	}

	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	for _, name := range cfg.Files {
		url := strings.TrimRight(cfg.SourceURL, "/") + "/" + name
		dest := filepath.Join(cfg.Dir, name)
		if err := download(ctx, url, dest, timeout); err != nil {
			return "", fmt.Errorf("assets: fetch %s: %w", name, err)
		}
	}

	if err := verify(cfg); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(cfg.Dir, stagingMarker), []byte("ok"), 0o644); err != nil {
		return "", fmt.Errorf("assets: write staging marker: %w", err)
	}

	log.Info().Str("dir", cfg.Dir).Int("files", len(cfg.Files)).Msg("model staging complete")
	return cfg.Dir, nil
}

// verify checks every expected file exists and is non-empty.
func verify(cfg Config) error {
	for _, name := range cfg.Files {
		info, err := os.Stat(filepath.Join(cfg.Dir, name))
		if err != nil {
			return fmt.Errorf("assets: missing model file %s: %w", name, err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("assets: model file %s is empty", name)
		}
	}
	return nil
}

// download fetches url into dest through a temp file, retrying transient
// network failures with exponential backoff.
func download(ctx context.Context, url, dest string, timeout time.Duration) error {
	return resilience.Retry(ctx, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: %s", url, resp.Status)
		}

		tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())

		if _, err := io.Copy(tmp, resp.Body); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), dest)
	}, &resilience.RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}, isRetryableDownload)
}

func isRetryableDownload(err error) bool {
	if resilience.IsRetryableNetworkError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "504")
}
