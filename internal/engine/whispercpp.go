//go:build whisper_cpp

package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"
)

// Model file names expected inside a staged model directory, by quantization.
var modelFiles = map[Quantization]string{
	QuantFP32: "ggml-model.bin",
	QuantINT8: "ggml-model-q8_0.bin",
}

type whisperEngine struct {
	model   whisperpkg.Model
	threads uint
}

// New loads the whisper.cpp model for the given quantization. path may be the
// staged model directory or the model file itself.
func New(path string, quant Quantization) (Engine, error) {
	file := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		name, ok := modelFiles[quant]
		if !ok {
			return nil, fmt.Errorf("engine: unknown quantization %q", quant)
		}
		file = filepath.Join(path, name)
	}

	model, err := whisperpkg.New(file)
	if err != nil {
		return nil, fmt.Errorf("engine: load model: %w", err)
	}

	log.Info().Str("model", file).Str("quantization", string(quant)).Msg("whisper model loaded")
	return &whisperEngine{
		model:   model,
		threads: uint(runtime.NumCPU()),
	}, nil
}

func (e *whisperEngine) Close() error {
	if e.model != nil {
		e.model.Close()
	}
	return nil
}

func (e *whisperEngine) Transcribe(ctx context.Context, samples []float32, params Params) (Result, error) {
	if len(samples) == 0 {
		return Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("engine: create context: %w", err)
	}

	wctx.SetThreads(e.threads)
	wctx.SetAudioCtx(0)
	wctx.SetMaxSegmentLength(0)
	wctx.SetMaxTokensPerSegment(0)
	switch params.Granularity {
	case GranularityWord:
		wctx.SetTokenTimestamps(true)
		wctx.SetSplitOnWord(true)
	case GranularityToken:
		wctx.SetTokenTimestamps(true)
		wctx.SetSplitOnWord(true)
		wctx.SetMaxTokensPerSegment(1)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("engine: process audio: %w", err)
	}

	var (
		segments []Segment
		parts    []string
	)
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Warn().Err(err).Msg("whisper: error reading segment")
			break
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		segments = append(segments, Segment{
			Text:  text,
			Start: float32(seg.Start.Seconds()),
			End:   float32(seg.End.Seconds()),
		})
	}

	return Result{
		Text:     strings.Join(parts, " "),
		Segments: segments,
	}, nil
}
