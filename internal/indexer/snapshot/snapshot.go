// Package snapshot serializes a sealed index into the single-file layout a
// documentation site ships to its browser search widget, and loads such a
// file back into a queryable index.
//
// Posting weights are written as raw term counts, so loading a snapshot
// reproduces the exact postings of the index that produced it.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/trie"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Format selects the outer envelope of a snapshot.
type Format int

const (
	// FormatJSON is a bare JSON document.
	FormatJSON Format = iota
	// FormatJS wraps the JSON in a script assigning it to window.search.
	FormatJS
)

const (
	jsPrefix = "Object.assign(window.search, "
	jsSuffix = ");"
)

// ResultsOptions are the presentation defaults stored with the index.
type ResultsOptions struct {
	LimitResults    int `json:"limit_results"`
	TeaserWordCount int `json:"teaser_word_count"`
}

type FieldOptions struct {
	Boost float64 `json:"boost"`
}

// SearchOptions are the query defaults stored with the index.
type SearchOptions struct {
	Bool   string                  `json:"bool"`
	Expand bool                    `json:"expand"`
	Fields map[string]FieldOptions `json:"fields"`
}

// Options controls Marshal. Search.Fields is always derived from the index.
type Options struct {
	Format  Format
	Results ResultsOptions
	Search  SearchOptions
}

// Envelope is a loaded snapshot.
type Envelope struct {
	Index   *index.Index
	Results ResultsOptions
	Search  SearchOptions
}

// Marshal encodes idx.
func Marshal(idx *index.Index, opts Options) ([]byte, error) {
	w := toWire(idx)
	w.ResultsOptions = opts.Results
	w.SearchOptions = opts.Search
	w.SearchOptions.Fields = make(map[string]FieldOptions, len(idx.Fields()))
	for _, f := range idx.Fields() {
		w.SearchOptions.Fields[f.Name] = FieldOptions{Boost: f.Boost}
	}

	body, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if opts.Format == FormatJS {
		out := make([]byte, 0, len(jsPrefix)+len(body)+len(jsSuffix)+1)
		out = append(out, jsPrefix...)
		out = append(out, body...)
		out = append(out, jsSuffix...)
		out = append(out, '\n')
		return out, nil
	}
	return body, nil
}

// sortedIDs returns the document ids in the order doc_urls is aligned to.
func sortedIDs(docs *index.DocumentStore) []string {
	ids := docs.IDs()
	index.SortIDs(ids)
	return ids
}

func toWire(idx *index.Index) *wireSnapshot {
	docs := idx.Documents()
	ids := sortedIDs(docs)
	fields := idx.FieldNames()

	w := &wireSnapshot{
		DocURLs: make([]string, len(ids)),
		Index: wireIndex{
			DocumentStore: wireDocumentStore{
				DocInfo: make(map[string]map[string]int, len(ids)),
				Docs:    make(map[string]map[string]string),
				Length:  len(ids),
				Save:    docs.SavesDocuments(),
			},
			Fields:   fields,
			Index:    make(map[string]wireFieldIndex, len(fields)),
			Pipeline: idx.Pipeline(),
			Ref:      idx.Ref(),
			Version:  idx.Version(),
		},
	}

	for i, id := range ids {
		d, _ := docs.Get(id)
		w.DocURLs[i] = d.URL
		info := make(map[string]int, len(fields))
		for _, f := range fields {
			info[f] = d.FieldLength(f)
		}
		w.Index.DocumentStore.DocInfo[id] = info
		if docs.SavesDocuments() {
			stored := make(map[string]string, len(d.Stored)+1)
			for k, v := range d.Stored {
				stored[k] = v
			}
			stored[idx.Ref()] = id
			w.Index.DocumentStore.Docs[id] = stored
		}
	}

	roots := make(map[string]*wireNode, len(fields))
	for _, f := range fields {
		roots[f] = newWireNode()
	}
	idx.Walk(func(token string, p *trie.Posting) bool {
		for _, e := range p.Entries() {
			for field, tf := range e.Fields {
				n := roots[field]
				for _, r := range token {
					n = n.child(r)
				}
				n.Docs[e.DocID] = wireTF{TF: tf}
				n.DF = len(n.Docs)
			}
		}
		return true
	})
	for f, root := range roots {
		w.Index.Index[f] = wireFieldIndex{Root: root}
	}
	return w
}

// Unmarshal decodes a snapshot in either format. The snapshot must have
// been produced with a pipeline equal to p and a compatible format
// version; every structural problem is reported as *errors.FormatError.
func Unmarshal(data []byte, p *pipeline.Pipeline) (*Envelope, error) {
	body := stripJS(data)

	var w wireSnapshot
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, apperrors.NewFormatError(err, "decoding snapshot")
	}
	if err := checkVersion(w.Index.Version); err != nil {
		return nil, err
	}
	if p != nil && !p.Matches(w.Index.Pipeline) {
		return nil, apperrors.NewFormatError(apperrors.ErrPipelineMismatch,
			"snapshot pipeline %v, runtime pipeline %v", w.Index.Pipeline, p.Names())
	}
	idx, err := fromWire(&w)
	if err != nil {
		return nil, err
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return &Envelope{Index: idx, Results: w.ResultsOptions, Search: w.SearchOptions}, nil
}

func stripJS(data []byte) []byte {
	body := bytes.TrimSpace(data)
	if rest, ok := bytes.CutPrefix(body, []byte(jsPrefix)); ok {
		body = bytes.TrimSpace(rest)
		body = bytes.TrimSuffix(body, []byte(";"))
		body = bytes.TrimSuffix(body, []byte(")"))
	}
	return body
}

// checkVersion accepts any snapshot whose major and minor version equal
// index.Version's.
func checkVersion(v string) error {
	want := strings.SplitN(index.Version, ".", 3)
	got := strings.SplitN(v, ".", 3)
	if len(got) < 2 || got[0] != want[0] || got[1] != want[1] {
		return apperrors.NewFormatError(apperrors.ErrVersion, "snapshot version %q, supported %s.%s.x", v, want[0], want[1])
	}
	return nil
}

func fromWire(w *wireSnapshot) (*index.Index, error) {
	ws := w.Index.DocumentStore
	if w.Index.Ref == "" {
		return nil, apperrors.NewFormatError(nil, "missing ref")
	}
	if len(w.Index.Fields) == 0 {
		return nil, apperrors.NewFormatError(nil, "missing fields")
	}
	if ws.Length != len(ws.DocInfo) {
		return nil, apperrors.NewFormatError(nil, "document store length %d, %d documents", ws.Length, len(ws.DocInfo))
	}
	for id := range ws.Docs {
		if _, ok := ws.DocInfo[id]; !ok {
			return nil, apperrors.NewFormatError(nil, "stored document %q has no docInfo", id)
		}
	}

	fields := make([]index.Field, len(w.Index.Fields))
	known := make(map[string]bool, len(fields))
	for i, name := range w.Index.Fields {
		boost := 1.0
		if fo, ok := w.SearchOptions.Fields[name]; ok && fo.Boost > 0 {
			boost = fo.Boost
		}
		fields[i] = index.Field{Name: name, Boost: boost}
		known[name] = true
	}

	docs := index.NewDocumentStore(ws.Save)
	ids := make([]string, 0, len(ws.DocInfo))
	for id := range ws.DocInfo {
		ids = append(ids, id)
	}
	index.SortIDs(ids)
	if len(w.DocURLs) != 0 && len(w.DocURLs) != len(ids) {
		return nil, apperrors.NewFormatError(nil, "%d doc_urls for %d documents", len(w.DocURLs), len(ids))
	}
	for i, id := range ids {
		d := index.Document{ID: id, FieldLengths: ws.DocInfo[id]}
		if len(w.DocURLs) != 0 {
			d.URL = w.DocURLs[i]
		}
		if stored, ok := ws.Docs[id]; ok {
			d.Stored = make(map[string]string, len(stored))
			for k, v := range stored {
				if k != w.Index.Ref {
					d.Stored[k] = v
				}
			}
		}
		docs.Put(d)
	}

	terms := trie.New()
	for field, fi := range w.Index.Index {
		if !known[field] {
			return nil, apperrors.NewFormatError(nil, "index for unknown field %q", field)
		}
		if fi.Root == nil {
			continue
		}
		if len(fi.Root.Docs) != 0 {
			return nil, apperrors.NewFormatError(nil, "field %q: postings on the root node", field)
		}
		if err := loadNode(terms, field, fi.Root, nil); err != nil {
			return nil, err
		}
	}

	return index.New(index.Options{
		Ref:      w.Index.Ref,
		Version:  w.Index.Version,
		Fields:   fields,
		Pipeline: w.Index.Pipeline,
	}, terms, docs), nil
}

func loadNode(terms *trie.Trie, field string, n *wireNode, prefix []rune) error {
	if n.DF != len(n.Docs) {
		return apperrors.NewFormatError(nil, "field %q term %q: df %d, %d documents", field, string(prefix), n.DF, len(n.Docs))
	}
	token := string(prefix)
	for id, tf := range n.Docs {
		if tf.TF <= 0 {
			return apperrors.NewFormatError(nil, "field %q term %q: non-positive tf for %q", field, token, id)
		}
		terms.Insert(token, id, field, tf.TF)
	}
	for r, c := range n.Children {
		if err := loadNode(terms, field, c, append(prefix, r)); err != nil {
			return err
		}
	}
	return nil
}
