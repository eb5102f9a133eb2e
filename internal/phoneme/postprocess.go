package phoneme

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/example/go-kokoro-tts/internal/tokenizer"
)

// substitutions are applied in order, every occurrence.
var substitutions = [][2]string{
	{"kəkˈoːɹoʊ", "kˈoʊkəɹoʊ"},
	{"kəkˈɔːɹəʊ", "kˈəʊkəɹəʊ"},
	{"ʲ", "j"},
	{"r", "ɹ"},
	{"x", "k"},
	{"ɬ", "l"},
}

var (
	trailingPunctuation = regexp.MustCompile(`[,.!?;:]$`)
	spaceBeforePunct    = regexp.MustCompile(`\s+([,.!?;:])`)
	punctWithoutSpace   = regexp2.MustCompile(`([,.!?;:])(?!\s)`, regexp2.None)

	hundredBoundary = regexp2.MustCompile(`(?<=[a-zɹː])(?=hˈʌndɹɪd)`, regexp2.None)
	detachedZ       = regexp2.MustCompile(` z(?=[;:,.!?¡¿—…"«»“” ]|$)`, regexp2.None)
	ninetyFlap      = regexp2.MustCompile(`(?<=nˈaɪn)ti(?!ː)`, regexp2.None)
)

// PostProcessor repairs raw phonemizer output and restricts it to the symbols
// the acoustic model knows.
type PostProcessor struct {
	vocab *tokenizer.Vocabulary
}

// NewPostProcessor returns a PostProcessor filtering against v.
func NewPostProcessor(v *tokenizer.Vocabulary) *PostProcessor {
	if v == nil {
		v = tokenizer.NewVocabulary()
	}

	return &PostProcessor{vocab: v}
}

// Process joins segments, reflows spacing around punctuation, applies the
// substitution and repair rules and drops out-of-vocabulary symbols. The
// en-us "ninety" flap repair only runs when lang is "en-us".
func (p *PostProcessor) Process(segments []string, lang string) string {
	s := reflow(joinSegments(segments))

	for _, sub := range substitutions {
		s = strings.ReplaceAll(s, sub[0], sub[1])
	}

	s = replace(hundredBoundary, s, " ")
	s = replace(detachedZ, s, "z")

	if lang == "en-us" {
		s = replace(ninetyFlap, s, "di")
	}

	return p.vocab.Filter(s)
}

// joinSegments separates consecutive segments with a space unless the earlier
// one already ends in sentence punctuation.
func joinSegments(segments []string) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(seg)

		if i < len(segments)-1 && !trailingPunctuation.MatchString(strings.TrimSpace(seg)) {
			b.WriteByte(' ')
		}
	}

	return b.String()
}

// reflow leaves exactly one space after punctuation and none before it.
func reflow(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = replace(punctWithoutSpace, s, "$1 ")
	s = spaceBeforePunct.ReplaceAllString(s, "$1")

	return strings.TrimSpace(s)
}

func replace(re *regexp2.Regexp, s, repl string) string {
	out, err := re.Replace(s, repl, -1, -1)
	if err != nil {
		return s
	}

	return out
}
