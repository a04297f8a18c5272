package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/voxstream/transcribe-gateway/internal/assets"
	"github.com/voxstream/transcribe-gateway/internal/config"
	"github.com/voxstream/transcribe-gateway/internal/observability"
)

func main() {
	var (
		dir     = flag.String("dir", "", "model directory (defaults to MODEL_DIR from the environment)")
		source  = flag.String("source", "", "base URL to download model files from (defaults to MODEL_SOURCE_URL)")
		files   = flag.String("files", "", "comma-separated model file names (defaults to MODEL_FILES)")
		timeout = flag.Duration("timeout", 15*time.Minute, "overall download timeout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "download_model: load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, true)

	if *dir != "" {
		cfg.ModelDir = *dir
	}
	if *source != "" {
		cfg.ModelSourceURL = *source
	}
	if *files != "" {
		cfg.ModelFiles = nil
		for _, f := range strings.Split(*files, ",") {
			if f = strings.TrimSpace(f); f != "" {
				cfg.ModelFiles = append(cfg.ModelFiles, f)
			}
		}
	}
	if cfg.ModelSourceURL == "" && !assets.Staged(cfg.ModelDir) {
		fmt.Fprintln(os.Stderr, "download_model: --source (or MODEL_SOURCE_URL) required when assets are not already staged")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	staged, err := assets.Ensure(ctx, assets.Config{
		Dir:       cfg.ModelDir,
		Files:     cfg.ModelFiles,
		SourceURL: cfg.ModelSourceURL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "download_model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model assets ready at %s\n", staged)
}
