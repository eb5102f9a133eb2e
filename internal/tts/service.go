package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-kokoro-tts/internal/audio"
	"github.com/example/go-kokoro-tts/internal/phoneme"
	"github.com/example/go-kokoro-tts/internal/text"
	"github.com/example/go-kokoro-tts/internal/tokenizer"
)

// DefaultLang is the phonemizer locale used when a request names none.
const DefaultLang = "en-us"

// ServiceOptions wires the pipeline stages. Phonemizer, Engine and Voice are
// required for synthesis; the rest default when zero.
type ServiceOptions struct {
	Phonemizer     phoneme.Phonemizer
	Engine         InferenceEngine
	Voice          StyleSource
	Vocabulary     *tokenizer.Vocabulary
	MaxChunkTokens int
	TrimSamples    int
	Logger         *slog.Logger
}

// Service runs text through normalization, phonemization, tokenization,
// chunk planning, inference and PCM assembly.
type Service struct {
	phonemizer phoneme.Phonemizer
	engine     InferenceEngine
	voice      StyleSource
	post       *phoneme.PostProcessor
	vocab      *tokenizer.Vocabulary
	maxChunk   int
	assembler  Assembler
	logger     *slog.Logger
}

// Result carries the audio and the intermediate forms of one utterance.
type Result struct {
	Normalized string
	Phonemes   string
	Tokens     []int64
	Chunks     int
	PCM        []int16
	SampleRate int
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.MaxChunkTokens == 0 {
		opts.MaxChunkTokens = DefaultMaxChunkTokens
	}

	if opts.MaxChunkTokens < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, opts.MaxChunkTokens)
	}

	if opts.TrimSamples < 0 {
		return nil, fmt.Errorf("trim samples must be >= 0, got %d", opts.TrimSamples)
	}

	if opts.Vocabulary == nil {
		opts.Vocabulary = tokenizer.NewVocabulary()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		phonemizer: opts.Phonemizer,
		engine:     opts.Engine,
		voice:      opts.Voice,
		post:       phoneme.NewPostProcessor(opts.Vocabulary),
		vocab:      opts.Vocabulary,
		maxChunk:   opts.MaxChunkTokens,
		assembler:  Assembler{TrimSamples: opts.TrimSamples},
		logger:     opts.Logger,
	}, nil
}

// WithVoice returns a copy of the service that conditions on voice.
func (s *Service) WithVoice(voice StyleSource) *Service {
	clone := *s
	clone.voice = voice

	return &clone
}

// Phonemes returns the post-processed phoneme string for input.
func (s *Service) Phonemes(ctx context.Context, input, lang string) (string, error) {
	if lang == "" {
		lang = DefaultLang
	}

	return s.phonemize(ctx, text.Normalize(input), lang)
}

func (s *Service) phonemize(ctx context.Context, normalized, lang string) (string, error) {
	if s.phonemizer == nil {
		return "", fmt.Errorf("%w: no phonemizer", ErrNotLoaded)
	}

	segments, err := s.phonemizer.Phonemize(ctx, normalized, lang, phoneme.DefaultOptions())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPhonemize, err)
	}

	return s.post.Process(segments, lang), nil
}

// Generate synthesizes input as 16-bit PCM at SampleRate.
func (s *Service) Generate(ctx context.Context, input, lang string, speed float32) (*Result, error) {
	if s.engine == nil || s.voice == nil {
		return nil, ErrNotLoaded
	}

	if lang == "" {
		lang = DefaultLang
	}

	if speed <= 0 {
		return nil, fmt.Errorf("speed must be > 0, got %v", speed)
	}

	start := time.Now()
	normalized := text.Normalize(input)
	s.logger.DebugContext(ctx, "normalized text", "text", normalized)

	phonemes, err := s.phonemize(ctx, normalized, lang)
	if err != nil {
		return nil, err
	}

	tokens := tokenizer.Tokenize(s.vocab, phonemes)
	s.logger.DebugContext(ctx, "phonemized", "lang", lang, "phonemes", phonemes, "tokens", len(tokens))

	chunks, err := Plan(tokens, s.voice, speed, s.maxChunk)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "chunk plan", "chunks", len(chunks), "style_row", chunks[0].StyleRow)

	pcm, err := s.assembler.Assemble(ctx, chunks, s.engine)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "synthesized",
		"lang", lang,
		"text_len", len(input),
		"tokens", len(tokens),
		"chunks", len(chunks),
		"samples", len(pcm),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Normalized: normalized,
		Phonemes:   phonemes,
		Tokens:     tokens,
		Chunks:     len(chunks),
		PCM:        pcm,
		SampleRate: SampleRate,
	}, nil
}

// GenerateWAV synthesizes input and returns a complete WAV file.
func (s *Service) GenerateWAV(ctx context.Context, input, lang string, speed float32) ([]byte, error) {
	res, err := s.Generate(ctx, input, lang, speed)
	if err != nil {
		return nil, err
	}

	return audio.EncodePCM16WAV(res.PCM, res.SampleRate)
}

// Close releases the engine when it holds native resources.
func (s *Service) Close() {
	if c, ok := s.engine.(interface{ Close() }); ok {
		c.Close()
	}
}
