// Package tokenizer maps cleaned IPA phoneme strings to the integer token IDs
// consumed by the Kokoro acoustic model.
package tokenizer

// Tokenizer encodes a phoneme string into model token IDs.
type Tokenizer interface {
	// Encode tokenizes phonemes and returns token IDs without the pad
	// sentinels; callers wrap the sequence when building model input.
	Encode(phonemes string) ([]int64, error)
}

// PhonemeTokenizer implements Tokenizer over a Vocabulary. Symbols missing
// from the vocabulary are dropped silently.
type PhonemeTokenizer struct {
	vocab *Vocabulary
}

// NewPhonemeTokenizer returns a tokenizer backed by v, or by the default
// vocabulary when v is nil.
func NewPhonemeTokenizer(v *Vocabulary) *PhonemeTokenizer {
	if v == nil {
		v = NewVocabulary()
	}

	return &PhonemeTokenizer{vocab: v}
}

// Encode never fails; the error return satisfies Tokenizer.
func (t *PhonemeTokenizer) Encode(phonemes string) ([]int64, error) {
	return Tokenize(t.vocab, phonemes), nil
}

// Vocabulary returns the table the tokenizer encodes with.
func (t *PhonemeTokenizer) Vocabulary() *Vocabulary { return t.vocab }

// Tokenize maps each rune of phonemes to its ID.
func Tokenize(v *Vocabulary, phonemes string) []int64 {
	out := make([]int64, 0, len(phonemes))
	for _, r := range phonemes {
		if id, ok := v.ID(r); ok {
			out = append(out, id)
		}
	}

	return out
}
