// Package source reads the documents the builder indexes. A source yields
// documents one at a time so arbitrarily large corpora never have to be
// held in memory before indexing.
package source

import "context"

// Document is a raw document as produced by the site generator: an id, an
// optional URL and the text of each field.
type Document struct {
	ID     string            `json:"id"`
	URL    string            `json:"url,omitempty"`
	Fields map[string]string `json:"fields"`
}

// Source calls fn for every document in a stable order. Iteration stops at
// the first error returned by fn, which Each returns unchanged.
type Source interface {
	Each(ctx context.Context, fn func(Document) error) error
}

// Slice is an in-memory Source.
type Slice []Document

func (s Slice) Each(ctx context.Context, fn func(Document) error) error {
	for _, d := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
