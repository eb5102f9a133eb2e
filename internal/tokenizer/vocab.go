package tokenizer

import "slices"

const (
	padSymbol    = "$"
	punctuation  = `;:,.!?¡¿—…"«»“” `
	latinLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	ipaLetters   = "ɑɐɒæɓʙβɔɕçɗɖðʤəɘɚɛɜɝɞɟʄɡɠɢʛɦɧħɥʜɨɪʝɭɬɫɮʟɱɯɰŋɳɲɴøɵɸθœɶʘɹɺɾɻʀʁɽʂʃʈʧʉʊʋⱱʌɣɤʍχʎʏʑʐʒʔʡʕʢǀǁǂǃˈˌːˑʼʴʰʱʲʷˠˤ˞↓↑→↗↘'̩'ᵻ"
)

// PadID is the pad symbol's ID, used as the start and end sentinel.
const PadID int64 = 0

// Vocabulary maps phoneme, punctuation and letter symbols to model token IDs.
// A symbol's ID is its position in the concatenated table
// pad + punctuation + Latin letters + IPA letters. It is immutable after
// construction and safe for concurrent use.
type Vocabulary struct {
	ids     map[rune]int64
	symbols []rune
}

// NewVocabulary builds the fixed Kokoro symbol table. The IPA class lists the
// apostrophe twice; the later position is the one the model was trained with,
// so the earlier slot is unreachable from Tokenize.
func NewVocabulary() *Vocabulary {
	var table []rune
	for _, class := range []string{padSymbol, punctuation, latinLetters, ipaLetters} {
		table = append(table, []rune(class)...)
	}

	ids := make(map[rune]int64, len(table))
	for i, r := range table {
		ids[r] = int64(i)
	}

	return &Vocabulary{ids: ids, symbols: table}
}

// Len reports the number of table positions, including shadowed duplicates.
func (v *Vocabulary) Len() int { return len(v.symbols) }

// ID returns the token ID for r.
func (v *Vocabulary) ID(r rune) (int64, bool) {
	id, ok := v.ids[r]
	return id, ok
}

// Contains reports whether r has a token ID.
func (v *Vocabulary) Contains(r rune) bool {
	_, ok := v.ids[r]
	return ok
}

// Symbol returns the symbol stored at table position id.
func (v *Vocabulary) Symbol(id int64) (rune, bool) {
	if id < 0 || id >= int64(len(v.symbols)) {
		return 0, false
	}

	return v.symbols[id], true
}

// IDs returns every ID reachable from a symbol, in ascending order.
func (v *Vocabulary) IDs() []int64 {
	out := make([]int64, 0, len(v.ids))
	for _, id := range v.ids {
		out = append(out, id)
	}

	slices.Sort(out)

	return out
}

// Filter drops every rune of s that has no token ID, preserving order.
func (v *Vocabulary) Filter(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if v.Contains(r) {
			out = append(out, r)
		}
	}

	return string(out)
}
