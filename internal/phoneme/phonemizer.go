// Package phoneme converts normalized text into cleaned IPA phoneme strings.
// Grapheme-to-phoneme conversion itself is delegated to an external
// phonemizer; this package owns the boundary to it and the local repairs
// applied to its output.
package phoneme

import "context"

// Phonemizer converts normalized text into an ordered list of phoneme
// segments. Implementations must not swallow failures.
type Phonemizer interface {
	Phonemize(ctx context.Context, text, lang string, opts Options) ([]string, error)
}

// Separator controls the strings emitted between words, syllables and phones.
type Separator struct {
	Word     string
	Syllable string
	Phone    string
}

// Options configures one phonemization call.
type Options struct {
	PreservePunctuation bool
	WithStress          bool
	Strip               bool
	Separator           Separator
}

// DefaultOptions returns the configuration the acoustic model was trained
// against: punctuation and stress kept, words separated by a single space.
func DefaultOptions() Options {
	return Options{
		PreservePunctuation: true,
		WithStress:          true,
		Strip:               false,
		Separator:           Separator{Word: " "},
	}
}
