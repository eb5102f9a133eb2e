package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// GraphRunner executes one ONNX graph. Runner satisfies it; tests supply fakes.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// Engine drives the Kokoro acoustic model: one call per token chunk.
// ORT sessions are not reentrant, so calls are serialized.
type Engine struct {
	mu     sync.Mutex
	runner GraphRunner
}

// NewEngine opens the model at modelPath with the configured ORT library.
func NewEngine(modelPath string, cfg RunnerConfig) (*Engine, error) {
	meta, err := KokoroSession(modelPath)
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(meta, cfg)
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}

	return &Engine{runner: runner}, nil
}

// NewEngineWithRunner wraps an existing runner.
func NewEngineWithRunner(runner GraphRunner) *Engine {
	return &Engine{runner: runner}
}

// Infer runs one forward pass. tokens is a padded token sequence, style is
// one voicepack row of 256 floats and speed is the rate multiplier.
func (e *Engine) Infer(ctx context.Context, tokens []int64, style []float32, speed float32) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, errors.New("empty token sequence")
	}

	if len(style) != styleWidth {
		return nil, fmt.Errorf("style vector has %d values, want %d", len(style), styleWidth)
	}

	tokenTensor, err := NewTensor(tokens, []int64{1, int64(len(tokens))})
	if err != nil {
		return nil, fmt.Errorf("tokens tensor: %w", err)
	}

	styleTensor, err := NewTensor(style, []int64{1, styleWidth})
	if err != nil {
		return nil, fmt.Errorf("style tensor: %w", err)
	}

	speedTensor, err := NewTensor([]float32{speed}, []int64{1})
	if err != nil {
		return nil, fmt.Errorf("speed tensor: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runner == nil {
		return nil, errors.New("engine is closed")
	}

	outputs, err := e.runner.Run(ctx, map[string]*Tensor{
		InputTokens: tokenTensor,
		InputStyle:  styleTensor,
		InputSpeed:  speedTensor,
	})
	if err != nil {
		return nil, err
	}

	audio, err := pickAudio(outputs)
	if err != nil {
		return nil, fmt.Errorf("graph %q: %w", e.runner.Name(), err)
	}

	return audio.Float32s()
}

// pickAudio returns the "audio" output, or the only output of a graph that
// names it differently.
func pickAudio(outputs map[string]*Tensor) (*Tensor, error) {
	if t, ok := outputs[OutputAudio]; ok {
		return t, nil
	}

	if len(outputs) == 1 {
		for _, t := range outputs {
			return t, nil
		}
	}

	return nil, fmt.Errorf("no %q output among %d outputs", OutputAudio, len(outputs))
}

// Close releases the underlying runner. Safe to call multiple times.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runner != nil {
		e.runner.Close()
		e.runner = nil
	}
}
