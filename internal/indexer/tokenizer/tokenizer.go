// Package tokenizer splits raw field text into lower-cased tokens. Text is
// NFKC-normalised first so compatibility forms (ligatures, full-width
// letters) index the same as their plain equivalents.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultSeparators are split on in addition to Unicode white space.
const DefaultSeparators = "-"

// Tokenizer splits on white space and a fixed set of separator runes.
type Tokenizer struct {
	separators string
}

// New returns a Tokenizer that also splits on every rune in separators.
func New(separators string) *Tokenizer {
	return &Tokenizer{separators: separators}
}

func (t *Tokenizer) isSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(t.separators, r)
}

// Tokens returns a lazy sequence over the tokens of text. The sequence can
// be ranged over any number of times.
func (t *Tokenizer) Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if text == "" {
			return
		}
		normalized := strings.ToLower(norm.NFKC.String(text))
		start := -1
		for i := 0; i < len(normalized); {
			r, size := utf8.DecodeRuneInString(normalized[i:])
			if t.isSeparator(r) {
				if start >= 0 {
					if !yield(normalized[start:i]) {
						return
					}
					start = -1
				}
			} else if start < 0 {
				start = i
			}
			i += size
		}
		if start >= 0 {
			yield(normalized[start:])
		}
	}
}

// Collect is a convenience for callers that need every token at once.
func (t *Tokenizer) Collect(text string) []string {
	var out []string
	for tok := range t.Tokens(text) {
		out = append(out, tok)
	}
	return out
}
