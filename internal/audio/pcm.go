package audio

import (
	"bytes"
	"errors"
	"io"
	"math"

	"github.com/go-audio/wav"
)

// SampleRate is the rate the engine expects: mono, 32-bit float, 16 kHz.
const SampleRate = 16000

// DecodePCM16LE converts little-endian 16-bit PCM bytes into float32 samples
// in [-1.0, 1.0].
func DecodePCM16LE(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, errors.New("pcm16 data length must be even")
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// DecodeWAV decodes a WAV blob into float32 samples and returns the source
// sample rate. Multi-channel input is mixed down to mono.
func DecodeWAV(data []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, errors.New("empty wav buffer")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int(1) << (bitDepth - 1))

	channels := 1
	sr := int(dec.SampleRate)
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if sr == 0 {
			sr = buf.Format.SampleRate
		}
	}
	if sr == 0 {
		sr = SampleRate
	}

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		out[i] = sum / float32(channels)
	}
	return out, sr, nil
}

// Resample converts samples from inRate to outRate using linear
// interpolation. Returns the input unchanged when the rates match.
func Resample(samples []float32, inRate, outRate int) []float32 {
	if inRate <= 0 || outRate <= 0 || inRate == outRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(float64(len(samples)) * ratio)
	if outLen < 1 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		if i0 >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(srcPos - float64(i0))
		out[i] = samples[i0] + (samples[i0+1]-samples[i0])*frac
	}
	return out
}

// RMS computes the root-mean-square energy of the samples. Returns 0 for an
// empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Level maps chunk RMS to a display level in [0, 1].
func Level(samples []float32) float64 {
	level := RMS(samples) * 6.0
	if level > 1.0 {
		level = 1.0
	}
	return level
}
