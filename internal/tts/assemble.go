package tts

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// SampleRate is the Kokoro output rate, used for both PCM and the WAV header.
const SampleRate = 24000

// DefaultTrimSamples is 10 ms at SampleRate.
const DefaultTrimSamples = 240

// InferenceEngine turns one padded token window into float audio samples.
type InferenceEngine interface {
	Infer(ctx context.Context, tokens []int64, style []float32, speed float32) ([]float32, error)
}

// Assembler runs chunks through an engine in order and joins the results.
type Assembler struct {
	// TrimSamples is cut from the tail of every chunk except the last.
	TrimSamples int
}

// Assemble calls engine once per chunk, strictly in order. Any failure
// aborts the whole utterance and no partial audio is returned.
func (a Assembler) Assemble(ctx context.Context, chunks []InferenceChunk, engine InferenceEngine) ([]int16, error) {
	if engine == nil {
		return nil, ErrNotLoaded
	}

	var samples []float32

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := engine.Infer(ctx, chunk.Tokens, chunk.Style, chunk.Speed)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d/%d: %w", ErrInference, i+1, len(chunks), err)
		}

		if i < len(chunks)-1 {
			out = out[:max(len(out)-a.TrimSamples, 0)]
		}

		slog.Debug("chunk synthesized", "chunk", i+1, "of", len(chunks), "tokens", len(chunk.Tokens), "samples", len(out))

		samples = append(samples, out...)
	}

	return QuantizePCM16(samples), nil
}

// QuantizePCM16 maps float samples to int16. Input peaking above 1 is scaled
// down to a peak of 1; quieter input is never amplified. Each sample becomes
// floor(v*32767), clamped to ±32767. NaN maps to 0.
func QuantizePCM16(samples []float32) []int16 {
	var peak float64

	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}

	scale := peak > 1 && !math.IsInf(peak, 1)
	out := make([]int16, len(samples))

	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) {
			continue
		}

		if scale {
			v /= peak
		}

		q := math.Floor(v * math.MaxInt16)
		out[i] = int16(max(min(q, math.MaxInt16), -math.MaxInt16))
	}

	return out
}
