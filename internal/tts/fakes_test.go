package tts

import (
	"context"
	"errors"
	"sync"

	"github.com/example/go-kokoro-tts/internal/phoneme"
	"github.com/example/go-kokoro-tts/internal/voicepack"
)

// rowVoice returns a voicepack whose row r is filled with float32(r).
func rowVoice(rows int) *voicepack.VoicePack {
	data := make([]float32, rows*voicepack.StyleDim)
	for r := range rows {
		for c := range voicepack.StyleDim {
			data[r*voicepack.StyleDim+c] = float32(r)
		}
	}

	vp, err := voicepack.New(data, rows, voicepack.StyleDim)
	if err != nil {
		panic(err)
	}

	return vp
}

type engineCall struct {
	tokens []int64
	style  []float32
	speed  float32
}

// rampEngine returns samplesPerToken*len(tokens) samples rising linearly
// from 0 by step.
type rampEngine struct {
	mu              sync.Mutex
	samplesPerToken int
	step            float32
	failAt          int
	calls           []engineCall
	closed          bool
}

func (e *rampEngine) Infer(_ context.Context, tokens []int64, style []float32, speed float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, engineCall{tokens: append([]int64(nil), tokens...), style: style, speed: speed})

	if e.failAt > 0 && len(e.calls) == e.failAt {
		return nil, errors.New("engine exploded")
	}

	out := make([]float32, len(tokens)*e.samplesPerToken)
	for i := range out {
		out[i] = float32(i) * e.step
	}

	return out, nil
}

func (e *rampEngine) Close() { e.closed = true }

// fixedEngine returns canned outputs in call order.
type fixedEngine struct {
	outputs [][]float32
	calls   int
}

func (e *fixedEngine) Infer(context.Context, []int64, []float32, float32) ([]float32, error) {
	out := e.outputs[e.calls]
	e.calls++

	return append([]float32(nil), out...), nil
}

type fakePhonemizer struct {
	segments []string
	err      error
	gotText  string
	gotLang  string
}

func (f *fakePhonemizer) Phonemize(_ context.Context, text, lang string, _ phoneme.Options) ([]string, error) {
	f.gotText, f.gotLang = text, lang
	if f.err != nil {
		return nil, f.err
	}

	return append([]string(nil), f.segments...), nil
}
