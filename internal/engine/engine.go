package engine

import (
	"context"
	"errors"
)

// Quantization selects which model weights variant the engine loads.
type Quantization string

const (
	QuantFP32 Quantization = "fp32"
	QuantINT8 Quantization = "int8"
)

// Granularity controls the timestamp resolution of returned segments.
type Granularity int

const (
	GranularitySegment Granularity = iota
	GranularityWord
	GranularityToken
)

// Params configures a single transcription call.
type Params struct {
	Granularity Granularity
}

// Segment is a timed piece of the transcript. Start and End are seconds
// relative to the beginning of the submitted sample buffer.
type Segment struct {
	Text  string
	Start float32
	End   float32
}

// Result is the outcome of one transcription call. Segments may be nil when
// the backend could not produce timing information; Text is always the full
// transcript of the buffer.
type Result struct {
	Text     string
	Segments []Segment
}

// ErrNotLoaded is returned when a transcription is requested before any
// successful model load.
var ErrNotLoaded = errors.New("engine: model not loaded")

// Engine is the boundary to the inference backend. Implementations are NOT
// required to be safe for concurrent Transcribe calls; callers serialize
// through Instance.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, params Params) (Result, error)
	Close() error
}
