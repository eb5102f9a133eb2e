package tts

import (
	"errors"

	"github.com/example/go-kokoro-tts/internal/voicepack"
)

var (
	// ErrNotLoaded reports a synthesis call made before the model or the
	// voicepack was loaded.
	ErrNotLoaded = errors.New("tts: model or voice not loaded")
	// ErrPhonemize wraps phonemizer failures such as an unsupported locale.
	ErrPhonemize = errors.New("tts: phonemization failed")
	// ErrInference wraps inference engine failures on a chunk.
	ErrInference = errors.New("tts: inference failed")
	// ErrIndexRange reports an utterance longer than the voicepack has rows for.
	ErrIndexRange = voicepack.ErrIndexRange
	// ErrUnknownVoice reports a voice id missing from the manifest.
	ErrUnknownVoice = errors.New("tts: unknown voice")
	// ErrInvalidChunkSize rejects a non-positive max chunk size.
	ErrInvalidChunkSize = errors.New("tts: max chunk tokens must be >= 1")
)
