//go:build !whisper_cpp

package engine

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Default stub (no cgo) so the project builds without the whisper_cpp tag.
type stubEngine struct{}

// New returns a no-op engine; builds tagged whisper_cpp replace this with
// the native whisper.cpp backend.
func New(path string, quant Quantization) (Engine, error) {
	log.Warn().Str("model", path).Msg("whisper_cpp build tag not set, using stub engine")
	return &stubEngine{}, nil
}

func (e *stubEngine) Close() error { return nil }

func (e *stubEngine) Transcribe(ctx context.Context, samples []float32, params Params) (Result, error) {
	return Result{}, nil
}
