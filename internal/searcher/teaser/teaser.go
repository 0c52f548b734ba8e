// Package teaser cuts the display excerpt shown under a search result: a
// window of words from the stored body placed where query hits are
// densest, with the hits marked <em>...</em>.
package teaser

import (
	"html"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
)

// Word weights. A hit dominates everything else; sentence starts are
// preferred over mid-sentence words so an excerpt without hits opens
// cleanly.
const (
	weightHit      = 40
	weightSentence = 8
	weightWord     = 2
)

const ellipsis = "…"

type word struct {
	text   string
	weight int
	hit    bool
}

type Builder struct {
	pipeline *pipeline.Pipeline
	words    int
}

// New returns a Builder producing excerpts of at most words words. words
// <= 0 disables teasers.
func New(p *pipeline.Pipeline, words int) *Builder {
	return &Builder{pipeline: p, words: words}
}

// Words is the excerpt length.
func (b *Builder) Words() int {
	return b.words
}

// Make returns the excerpt of body for a result that matched terms. Terms
// are index tokens, compared against each body word after it has been run
// through the pipeline.
func (b *Builder) Make(body string, terms []string) string {
	if b.words <= 0 || body == "" {
		return ""
	}
	words := b.split(body, terms)
	if len(words) == 0 {
		return ""
	}

	size := min(b.words, len(words))
	start, best, sum := 0, 0, 0
	for i := 0; i < len(words); i++ {
		sum += words[i].weight
		if i >= size {
			sum -= words[i-size].weight
		}
		if i >= size-1 && sum > best {
			best, start = sum, i-size+1
		}
	}

	var sb strings.Builder
	if start > 0 {
		sb.WriteString(ellipsis)
		sb.WriteByte(' ')
	}
	for i, w := range words[start : start+size] {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if w.hit {
			sb.WriteString("<em>")
			sb.WriteString(html.EscapeString(w.text))
			sb.WriteString("</em>")
		} else {
			sb.WriteString(html.EscapeString(w.text))
		}
	}
	if start+size < len(words) {
		sb.WriteByte(' ')
		sb.WriteString(ellipsis)
	}
	return sb.String()
}

func (b *Builder) split(body string, terms []string) []word {
	hits := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		hits[t] = struct{}{}
	}
	var out []word
	sentenceStart := true
	for _, text := range strings.FieldsFunc(body, unicode.IsSpace) {
		w := word{text: text, weight: weightWord}
		if sentenceStart {
			w.weight = weightSentence
		}
		for tok := range b.pipeline.Process(text) {
			if _, ok := hits[tok]; ok {
				w.hit, w.weight = true, weightHit
				break
			}
		}
		out = append(out, w)
		sentenceStart = endsSentence(text)
	}
	return out
}

func endsSentence(text string) bool {
	text = strings.TrimRight(text, `"')]`)
	return strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?")
}
