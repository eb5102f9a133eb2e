package tts

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/example/go-kokoro-tts/internal/config"
)

func TestNewServiceFromConfig_MissingVoice(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.VoicePath = filepath.Join(t.TempDir(), "missing.npy")

	_, err := NewServiceFromConfig(cfg)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("error = %v, want fs.ErrNotExist", err)
	}
}

func TestNewServiceFromConfig_BadPhonemizerCommand(t *testing.T) {
	tmp := t.TempDir()
	voice := filepath.Join(tmp, "af.bin")
	writeRawVoice(t, voice, 2)

	cfg := config.DefaultConfig()
	cfg.Paths.VoicePath = voice
	cfg.TTS.PhonemizerCmd = `espeak-ng "unterminated`

	if _, err := NewServiceFromConfig(cfg); err == nil {
		t.Fatal("expected error for unparseable phonemizer command")
	}
}

func TestNewServiceFromConfig_MissingModel(t *testing.T) {
	tmp := t.TempDir()
	voice := filepath.Join(tmp, "af.bin")
	writeRawVoice(t, voice, 2)

	cfg := config.DefaultConfig()
	cfg.Paths.VoicePath = voice
	cfg.Paths.ModelPath = filepath.Join(tmp, "missing.onnx")
	cfg.Runtime.ORTLibraryPath = filepath.Join(tmp, "libonnxruntime.so")

	if _, err := NewServiceFromConfig(cfg); err == nil {
		t.Fatal("expected error when ORT library and model are missing")
	}
}
