package trie

import (
	"maps"
	"slices"
)

// PostingEntry records how often a token occurs in each field of one
// document.
type PostingEntry struct {
	DocID  string
	Fields map[string]float64
}

// Frequency returns the term frequency of the token in field.
func (e *PostingEntry) Frequency(field string) float64 {
	return e.Fields[field]
}

// Total sums the term frequency over all fields.
func (e *PostingEntry) Total() float64 {
	var sum float64
	for _, f := range e.Fields {
		sum += f
	}
	return sum
}

// Posting maps document ids to their PostingEntry for a single token. It
// is owned by the trie node that terminates the token and must be treated
// as read-only outside this package.
type Posting struct {
	entries map[string]*PostingEntry
}

func newPosting() *Posting {
	return &Posting{entries: make(map[string]*PostingEntry)}
}

func (p *Posting) add(docID, field string, count float64) {
	e, ok := p.entries[docID]
	if !ok {
		e = &PostingEntry{DocID: docID, Fields: make(map[string]float64, 1)}
		p.entries[docID] = e
	}
	e.Fields[field] += count
}

// DocFrequency is the number of distinct documents containing the token.
func (p *Posting) DocFrequency() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Entry returns the entry for docID.
func (p *Posting) Entry(docID string) (*PostingEntry, bool) {
	if p == nil {
		return nil, false
	}
	e, ok := p.entries[docID]
	return e, ok
}

// Frequency returns the term frequency of the token in field of docID.
func (p *Posting) Frequency(docID, field string) float64 {
	e, ok := p.Entry(docID)
	if !ok {
		return 0
	}
	return e.Frequency(field)
}

// DocIDs returns the document ids in ascending order.
func (p *Posting) DocIDs() []string {
	if p == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(p.entries))
}

// Entries returns every entry ordered by document id.
func (p *Posting) Entries() []*PostingEntry {
	ids := p.DocIDs()
	out := make([]*PostingEntry, len(ids))
	for i, id := range ids {
		out[i] = p.entries[id]
	}
	return out
}
