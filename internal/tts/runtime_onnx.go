package tts

import (
	"fmt"
	"log/slog"

	"github.com/example/go-kokoro-tts/internal/config"
	"github.com/example/go-kokoro-tts/internal/onnx"
	"github.com/example/go-kokoro-tts/internal/phoneme"
	"github.com/example/go-kokoro-tts/internal/voicepack"
)

// NewServiceFromConfig loads the voicepack, the espeak-ng binding and the
// Kokoro ONNX model named by cfg.
func NewServiceFromConfig(cfg config.Config) (*Service, error) {
	voice, err := voicepack.Load(cfg.Paths.VoicePath)
	if err != nil {
		return nil, err
	}

	slog.Info("loaded voicepack", "path", cfg.Paths.VoicePath, "rows", voice.Rows())

	espeak, err := phoneme.NewEspeak(cfg.TTS.PhonemizerCmd)
	if err != nil {
		return nil, fmt.Errorf("phonemizer: %w", err)
	}

	engine, err := newONNXEngine(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := NewService(ServiceOptions{
		Phonemizer:     espeak,
		Engine:         engine,
		Voice:          voice,
		MaxChunkTokens: cfg.TTS.MaxChunkTokens,
		TrimSamples:    cfg.TTS.TrimSamples,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}

	return svc, nil
}

func newONNXEngine(cfg config.Config) (*onnx.Engine, error) {
	info, err := onnx.Bootstrap(cfg.Runtime)
	if err != nil {
		return nil, fmt.Errorf("bootstrap onnx runtime: %w", err)
	}

	engine, err := onnx.NewEngine(cfg.Paths.ModelPath, onnx.RunnerConfig{
		LibraryPath: info.LibraryPath,
		APIVersion:  info.APIVersion(),
	})
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	return engine, nil
}
