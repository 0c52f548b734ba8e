// Package pipeline implements the ordered chain of token transformers that
// runs between the tokenizer and the index. The builder and the query engine
// must be constructed from the same config.PipelineConfig, otherwise query
// terms never line up with indexed terms.
package pipeline

import (
	"fmt"
	"iter"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// Stage transforms one token into zero, one or many tokens.
type Stage interface {
	Name() string
	Apply(token string) []string
}

// Pipeline is an immutable, ordered list of stages plus the tokenizer that
// feeds them. It is safe for concurrent use.
type Pipeline struct {
	tokenizer *tokenizer.Tokenizer
	stages    []Stage
}

// New builds a Pipeline from cfg. Every stage name must be known.
func New(cfg config.PipelineConfig) (*Pipeline, error) {
	p := &Pipeline{
		tokenizer: tokenizer.New(cfg.Separators),
		stages:    make([]Stage, 0, len(cfg.Stages)),
	}
	for _, name := range cfg.Stages {
		stage, err := newStage(name, cfg)
		if err != nil {
			return nil, err
		}
		p.stages = append(p.stages, stage)
	}
	return p, nil
}

func newStage(name string, cfg config.PipelineConfig) (Stage, error) {
	switch name {
	case TrimmerName:
		return Trimmer{}, nil
	case StopWordFilterName:
		return NewStopWordFilter(cfg.Stopwords), nil
	case StemmerName:
		return Stemmer{}, nil
	default:
		return nil, fmt.Errorf("unknown pipeline stage %q", name)
	}
}

// Names returns the stage names in order, as recorded in a snapshot.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Matches reports whether names describes exactly this pipeline.
func (p *Pipeline) Matches(names []string) bool {
	return slices.Equal(p.Names(), names)
}

// Run pushes every token of tokens through the stages.
func (p *Pipeline) Run(tokens iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		for tok := range tokens {
			if !p.apply(0, tok, yield) {
				return
			}
		}
	}
}

// Process tokenizes text and runs the tokens through the stages.
func (p *Pipeline) Process(text string) iter.Seq[string] {
	return p.Run(p.tokenizer.Tokens(text))
}

// ProcessToken runs a single already-tokenized term through the stages.
func (p *Pipeline) ProcessToken(token string) []string {
	var out []string
	p.apply(0, token, func(s string) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Tokenizer exposes the tokenizer feeding this pipeline.
func (p *Pipeline) Tokenizer() *tokenizer.Tokenizer {
	return p.tokenizer
}

func (p *Pipeline) apply(i int, token string, yield func(string) bool) bool {
	if i == len(p.stages) {
		return yield(token)
	}
	for _, out := range p.stages[i].Apply(token) {
		if !p.apply(i+1, out, yield) {
			return false
		}
	}
	return true
}
