package pipeline

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// Stage names as written into a snapshot's "pipeline" member.
const (
	TrimmerName        = "trimmer"
	StopWordFilterName = "stopWordFilter"
	StemmerName        = "stemmer"
)

// maxStemPasses caps the fixed-point loop in Stemmer. Porter2 reaches its
// fixed point within two or three passes on English words; the cap only
// guards against a step that never settles.
const maxStemPasses = 16

// Trimmer strips leading and trailing runes that are neither letters nor
// digits. A token that trims to nothing is dropped.
type Trimmer struct{}

func (Trimmer) Name() string { return TrimmerName }

func (Trimmer) Apply(token string) []string {
	trimmed := strings.TrimFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if trimmed == "" {
		return nil
	}
	return []string{trimmed}
}

// StopWordFilter drops tokens that exactly match a configured word.
type StopWordFilter struct {
	words map[string]struct{}
}

func NewStopWordFilter(words []string) *StopWordFilter {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return &StopWordFilter{words: set}
}

func (f *StopWordFilter) Name() string { return StopWordFilterName }

func (f *StopWordFilter) Apply(token string) []string {
	if _, stop := f.words[token]; stop {
		return nil
	}
	return []string{token}
}

// Stemmer reduces English words with the Snowball (Porter2) algorithm. The
// algorithm is re-applied until the output stops changing so that
// stem(stem(w)) == stem(w).
type Stemmer struct{}

func (Stemmer) Name() string { return StemmerName }

func (Stemmer) Apply(token string) []string {
	return []string{Stem(token)}
}

// Stem returns the stable stem of token, or token itself when the stemmer
// cannot handle it.
func Stem(token string) string {
	if !stemmable(token) {
		return token
	}
	return fixedPoint(token, stemOnce)
}

// fixedPoint applies step until its output stops changing. A token that
// does not settle within maxStemPasses, or that cycles, is returned
// unchanged; applying fixedPoint to it again takes the same path, so the
// result stays idempotent either way.
func fixedPoint(token string, step func(string) string) string {
	current := token
	seen := map[string]struct{}{token: {}}
	for range maxStemPasses {
		next := step(current)
		if next == "" || next == current {
			return current
		}
		if _, ok := seen[next]; ok {
			break
		}
		seen[next] = struct{}{}
		current = next
	}
	slog.Default().Warn("stemmer did not settle; keeping token unstemmed", "component", "pipeline", "token", token)
	return token
}

func stemOnce(word string) (out string) {
	defer func() {
		// the snowball implementation indexes into the word; a panic means
		// it could not process it, so leave the word alone.
		if recover() != nil {
			out = word
		}
	}()
	return english.Stem(word, false)
}

// stemmable reports whether token contains a letter; numbers and symbols
// pass through untouched.
func stemmable(token string) bool {
	for _, r := range token {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
