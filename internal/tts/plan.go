package tts

import (
	"fmt"

	"github.com/example/go-kokoro-tts/internal/tokenizer"
)

// DefaultMaxChunkTokens bounds the token tensor of one inference call.
const DefaultMaxChunkTokens = 150

// StyleSource selects the style vector for an utterance of a given length.
// *voicepack.VoicePack implements it.
type StyleSource interface {
	Style(seqLen int) ([]float32, error)
}

// InferenceChunk is one bounded window of the padded token sequence.
// Every chunk of an utterance shares the same Style slice.
type InferenceChunk struct {
	Index    int
	Tokens   []int64
	Style    []float32
	Speed    float32
	StyleRow int
}

// Plan pads tokens with the sentinel at both ends, picks one style row from
// the padded length and splits the padded sequence into consecutive windows
// of at most maxChunk tokens.
func Plan(tokens []int64, voice StyleSource, speed float32, maxChunk int) ([]InferenceChunk, error) {
	if maxChunk < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, maxChunk)
	}

	if voice == nil {
		return nil, ErrNotLoaded
	}

	padded := make([]int64, 0, len(tokens)+2)
	padded = append(padded, tokenizer.PadID)
	padded = append(padded, tokens...)
	padded = append(padded, tokenizer.PadID)

	style, err := voice.Style(len(padded))
	if err != nil {
		return nil, fmt.Errorf("select style for %d tokens: %w", len(padded), err)
	}

	n := (len(padded) + maxChunk - 1) / maxChunk
	chunks := make([]InferenceChunk, 0, n)

	for start := 0; start < len(padded); start += maxChunk {
		end := min(start+maxChunk, len(padded))
		chunks = append(chunks, InferenceChunk{
			Index:    len(chunks),
			Tokens:   padded[start:end:end],
			Style:    style,
			Speed:    speed,
			StyleRow: len(padded) - 1,
		})
	}

	return chunks, nil
}
