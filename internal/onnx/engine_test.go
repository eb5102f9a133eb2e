package onnx

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type fakeRunner struct {
	calls  []map[string]*Tensor
	output map[string]*Tensor
	err    error
	closed int
}

func (f *fakeRunner) Run(_ context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	f.calls = append(f.calls, inputs)
	if f.err != nil {
		return nil, f.err
	}

	return f.output, nil
}

func (f *fakeRunner) Name() string { return "fake" }

func (f *fakeRunner) Close() { f.closed++ }

func mustTensor[T int64 | float32](t *testing.T, data []T, shape []int64) *Tensor {
	t.Helper()

	tt, err := NewTensor(data, shape)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	return tt
}

func TestEngineInfer_BuildsKokoroInputs(t *testing.T) {
	runner := &fakeRunner{
		output: map[string]*Tensor{OutputAudio: mustTensor(t, []float32{0.1, -0.2, 0.3}, []int64{3})},
	}
	engine := NewEngineWithRunner(runner)

	style := make([]float32, styleWidth)
	style[0] = 0.5

	audio, err := engine.Infer(context.Background(), []int64{0, 43, 156, 0}, style, 1.25)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}

	if !reflect.DeepEqual(audio, []float32{0.1, -0.2, 0.3}) {
		t.Fatalf("audio = %v", audio)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.calls))
	}

	in := runner.calls[0]

	if got := in[InputTokens].Shape(); !reflect.DeepEqual(got, []int64{1, 4}) {
		t.Errorf("tokens shape = %v, want [1 4]", got)
	}

	if got := in[InputStyle].Shape(); !reflect.DeepEqual(got, []int64{1, styleWidth}) {
		t.Errorf("style shape = %v, want [1 256]", got)
	}

	speed, _ := in[InputSpeed].Float32s()
	if !reflect.DeepEqual(speed, []float32{1.25}) {
		t.Errorf("speed = %v, want [1.25]", speed)
	}
}

func TestEngineInfer_SingleUnnamedOutput(t *testing.T) {
	runner := &fakeRunner{
		output: map[string]*Tensor{"waveform": mustTensor(t, []float32{1}, []int64{1, 1})},
	}

	audio, err := NewEngineWithRunner(runner).Infer(context.Background(), []int64{0, 0}, make([]float32, styleWidth), 1)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}

	if len(audio) != 1 {
		t.Fatalf("audio = %v", audio)
	}
}

func TestEngineInfer_Errors(t *testing.T) {
	style := make([]float32, styleWidth)
	runErr := errors.New("boom")

	tests := []struct {
		name    string
		runner  *fakeRunner
		tokens  []int64
		style   []float32
		wantErr string
	}{
		{name: "empty tokens", runner: &fakeRunner{}, tokens: nil, style: style, wantErr: "empty token sequence"},
		{name: "short style", runner: &fakeRunner{}, tokens: []int64{0}, style: style[:10], wantErr: "style vector has 10 values"},
		{name: "run error", runner: &fakeRunner{err: runErr}, tokens: []int64{0}, style: style, wantErr: "boom"},
		{
			name: "ambiguous outputs",
			runner: &fakeRunner{output: map[string]*Tensor{
				"a": mustTensor(t, []float32{1}, []int64{1}),
				"b": mustTensor(t, []float32{1}, []int64{1}),
			}},
			tokens: []int64{0}, style: style, wantErr: `no "audio" output`,
		},
		{
			name:   "int64 audio",
			runner: &fakeRunner{output: map[string]*Tensor{OutputAudio: mustTensor(t, []int64{1}, []int64{1})}},
			tokens: []int64{0}, style: style, wantErr: "expected float32 tensor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngineWithRunner(tt.runner).Infer(context.Background(), tt.tokens, tt.style, 1)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEngineClose(t *testing.T) {
	runner := &fakeRunner{}
	engine := NewEngineWithRunner(runner)

	engine.Close()
	engine.Close()

	if runner.closed != 1 {
		t.Errorf("runner closed %d times, want 1", runner.closed)
	}

	if _, err := engine.Infer(context.Background(), []int64{0}, make([]float32, styleWidth), 1); err == nil {
		t.Error("expected error after Close")
	}
}
