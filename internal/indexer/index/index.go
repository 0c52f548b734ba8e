// Package index holds the sealed, queryable form of a search index: the
// term trie, the document store and the metadata a snapshot records about
// how both were produced.
package index

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/trie"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Version is the index format version written into snapshots.
const Version = "0.9.5"

// Field is an indexed field and its static boost.
type Field struct {
	Name  string
	Boost float64
}

// Options carries the metadata of an Index.
type Options struct {
	Ref      string
	Version  string
	Fields   []Field
	Pipeline []string
}

// Index is an immutable inverted index. Nothing in it may be modified once
// New returns, which makes it safe for concurrent readers.
type Index struct {
	ref      string
	version  string
	fields   []Field
	boosts   map[string]float64
	pipeline []string
	terms    *trie.Trie
	docs     *DocumentStore
}

// New seals terms and docs into an Index. Callers hand over ownership of
// both and must not modify them afterwards.
func New(opts Options, terms *trie.Trie, docs *DocumentStore) *Index {
	if opts.Version == "" {
		opts.Version = Version
	}
	idx := &Index{
		ref:      opts.Ref,
		version:  opts.Version,
		fields:   append([]Field(nil), opts.Fields...),
		boosts:   make(map[string]float64, len(opts.Fields)),
		pipeline: append([]string(nil), opts.Pipeline...),
		terms:    terms,
		docs:     docs,
	}
	for _, f := range idx.fields {
		idx.boosts[f.Name] = f.Boost
	}
	return idx
}

func (idx *Index) Ref() string        { return idx.ref }
func (idx *Index) Version() string    { return idx.version }
func (idx *Index) Pipeline() []string { return append([]string(nil), idx.pipeline...) }
func (idx *Index) Fields() []Field    { return append([]Field(nil), idx.fields...) }

// FieldNames returns the field names in declaration order.
func (idx *Index) FieldNames() []string {
	names := make([]string, len(idx.fields))
	for i, f := range idx.fields {
		names[i] = f.Name
	}
	return names
}

// FieldBoost returns the boost of field and whether the field exists.
func (idx *Index) FieldBoost(field string) (float64, bool) {
	b, ok := idx.boosts[field]
	return b, ok
}

func (idx *Index) Documents() *DocumentStore { return idx.docs }

func (idx *Index) TotalDocs() int { return idx.docs.Size() }

// Terms is the number of distinct indexed tokens.
func (idx *Index) Terms() int { return idx.terms.Len() }

func (idx *Index) Lookup(token string) *trie.Posting {
	return idx.terms.Lookup(token)
}

func (idx *Index) DocFrequency(token string) int {
	return idx.terms.Lookup(token).DocFrequency()
}

func (idx *Index) PrefixSearch(prefix string) []trie.Match {
	return idx.terms.PrefixSearch(prefix)
}

func (idx *Index) FuzzySearch(token string, maxDistance int) []trie.Match {
	return idx.terms.FuzzySearch(token, maxDistance)
}

func (idx *Index) Walk(fn func(token string, p *trie.Posting) bool) {
	idx.terms.Walk(fn)
}

// Validate checks the structural invariants: every terminal token has a
// non-empty posting, every posted document exists in the store and every
// posted field is a declared field. Violations are reported as a
// *errors.FormatError.
func (idx *Index) Validate() error {
	if idx.ref == "" {
		return apperrors.NewFormatError(nil, "empty ref field")
	}
	if len(idx.fields) == 0 {
		return apperrors.NewFormatError(nil, "no fields declared")
	}
	if len(idx.boosts) != len(idx.fields) {
		return apperrors.NewFormatError(nil, "duplicate field declaration")
	}
	var err error
	idx.terms.Walk(func(token string, p *trie.Posting) bool {
		if p.DocFrequency() == 0 {
			err = apperrors.NewFormatError(nil, "term %q has an empty posting", token)
			return false
		}
		for _, e := range p.Entries() {
			if !idx.docs.Has(e.DocID) {
				err = apperrors.NewFormatError(nil, "term %q references unknown document %q", token, e.DocID)
				return false
			}
			for field := range e.Fields {
				if _, ok := idx.boosts[field]; !ok {
					err = apperrors.NewFormatError(nil, "term %q posted under unknown field %q", token, field)
					return false
				}
			}
		}
		return true
	})
	return err
}

func (idx *Index) String() string {
	return fmt.Sprintf("index(v%s, %d docs, %d terms)", idx.version, idx.TotalDocs(), idx.Terms())
}
