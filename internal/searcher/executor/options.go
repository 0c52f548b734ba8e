package executor

import (
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// Options control query evaluation.
type Options struct {
	// Mode is the boolean combination used when the query does not set one.
	Mode parser.Mode
	// Expand also matches every query term as a prefix.
	Expand bool
	// CaseSensitiveFields makes field qualifiers match field names exactly.
	CaseSensitiveFields bool
	ExactMatchBonus     float64
	// Limit is the number of results returned when the caller passes 0.
	Limit int
}

// OptionsFromConfig maps the search section of the config.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	mode := parser.ParseMode(cfg.Mode)
	if mode == parser.ModeDefault {
		mode = parser.ModeOR
	}
	bonus := cfg.ExactMatchBonus
	if bonus <= 0 {
		bonus = ranker.DefaultExactMatchBonus
	}
	return Options{
		Mode:                mode,
		Expand:              cfg.Expand,
		CaseSensitiveFields: cfg.CaseSensitiveFields,
		ExactMatchBonus:     bonus,
		Limit:               cfg.DefaultLimit,
	}
}

// WithSnapshot applies the query defaults a snapshot was published with.
// Unset snapshot values leave o unchanged.
func (o Options) WithSnapshot(search snapshot.SearchOptions, results snapshot.ResultsOptions) Options {
	if m := parser.ParseMode(search.Bool); m != parser.ModeDefault {
		o.Mode = m
		o.Expand = search.Expand
	}
	if results.LimitResults > 0 {
		o.Limit = results.LimitResults
	}
	return o
}
