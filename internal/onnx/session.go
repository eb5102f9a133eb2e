package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Graph input and output names of the Kokoro acoustic model.
const (
	InputTokens = "tokens"
	InputStyle  = "style"
	InputSpeed  = "speed"
	OutputAudio = "audio"
)

// styleWidth is the number of floats in one voicepack row.
const styleWidth = 256

// NodeInfo describes a graph input or output. A dimension of -1 is dynamic.
type NodeInfo struct {
	Name  string
	DType TensorDType
	Shape []int64
}

// Session is the static description of one ONNX graph on disk.
type Session struct {
	Name string
	Path string

	Inputs  []NodeInfo
	Outputs []NodeInfo
}

// KokoroSession describes the Kokoro model stored at modelPath.
func KokoroSession(modelPath string) (Session, error) {
	if strings.TrimSpace(modelPath) == "" {
		return Session{}, errors.New("model path is required")
	}

	path := filepath.Clean(modelPath)
	if _, err := os.Stat(path); err != nil {
		return Session{}, fmt.Errorf("model file: %w", err)
	}

	s := Session{
		Name: "kokoro",
		Path: path,
		Inputs: []NodeInfo{
			{Name: InputTokens, DType: DTypeInt64, Shape: []int64{1, -1}},
			{Name: InputStyle, DType: DTypeFloat32, Shape: []int64{1, styleWidth}},
			{Name: InputSpeed, DType: DTypeFloat32, Shape: []int64{1}},
		},
		Outputs: []NodeInfo{
			{Name: OutputAudio, DType: DTypeFloat32, Shape: []int64{-1}},
		},
	}

	slog.Info(
		"loaded ONNX session",
		"name", s.Name,
		"path", s.Path,
		"inputs", nodeNames(s.Inputs),
		"outputs", nodeNames(s.Outputs),
	)

	return s, nil
}

// ValidateInputs checks that inputs carries exactly the tensors the graph
// declares, with matching dtypes and static dimensions.
func (s Session) ValidateInputs(inputs map[string]*Tensor) error {
	for _, node := range s.Inputs {
		t, ok := inputs[node.Name]
		if !ok || t == nil {
			return fmt.Errorf("graph %q: missing input %q", s.Name, node.Name)
		}

		if t.DType() != node.DType {
			return fmt.Errorf("graph %q: input %q has dtype %s, want %s", s.Name, node.Name, t.DType(), node.DType)
		}

		if err := matchShape(node.Shape, t.Shape()); err != nil {
			return fmt.Errorf("graph %q: input %q: %w", s.Name, node.Name, err)
		}
	}

	if len(inputs) != len(s.Inputs) {
		return fmt.Errorf("graph %q: got %d inputs, want %d (%s)", s.Name, len(inputs), len(s.Inputs), nodeNames(s.Inputs))
	}

	return nil
}

func matchShape(want, got []int64) error {
	if len(want) != len(got) {
		return fmt.Errorf("rank %d, want %d", len(got), len(want))
	}

	for i, d := range want {
		if d >= 0 && got[i] != d {
			return fmt.Errorf("dim %d is %d, want %d", i, got[i], d)
		}
	}

	return nil
}

func nodeNames(nodes []NodeInfo) string {
	if len(nodes) == 0 {
		return ""
	}

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}

	return strings.Join(names, ",")
}
