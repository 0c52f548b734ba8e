package index

import (
	"maps"
	"slices"
)

// Document is what the store keeps about one indexed document. FieldLengths
// counts the pipeline output tokens of each field. Stored holds the raw
// field text and is empty unless the store saves documents.
type Document struct {
	ID           string
	URL          string
	FieldLengths map[string]int
	Stored       map[string]string
}

// FieldLength returns the token count of field, zero when absent.
func (d Document) FieldLength(field string) int {
	return d.FieldLengths[field]
}

func (d Document) clone() Document {
	d.FieldLengths = maps.Clone(d.FieldLengths)
	d.Stored = maps.Clone(d.Stored)
	return d
}

// DocumentStore maps document ids to their Document and assigns every id a
// dense ordinal in insertion order. Ordinals are stable for the life of the
// store, so re-putting an id keeps its ordinal.
type DocumentStore struct {
	save     bool
	docs     map[string]Document
	ordinals map[string]uint32
	ids      []string
}

// NewDocumentStore creates an empty store. When save is false the Stored
// text of every document is discarded on Put.
func NewDocumentStore(save bool) *DocumentStore {
	return &DocumentStore{
		save:     save,
		docs:     make(map[string]Document),
		ordinals: make(map[string]uint32),
	}
}

// Put registers doc, overwriting any document with the same id.
func (s *DocumentStore) Put(doc Document) {
	doc = doc.clone()
	if doc.FieldLengths == nil {
		doc.FieldLengths = make(map[string]int)
	}
	if !s.save {
		doc.Stored = nil
	}
	if _, ok := s.ordinals[doc.ID]; !ok {
		s.ordinals[doc.ID] = uint32(len(s.ids))
		s.ids = append(s.ids, doc.ID)
	}
	s.docs[doc.ID] = doc
}

func (s *DocumentStore) Get(id string) (Document, bool) {
	d, ok := s.docs[id]
	return d, ok
}

func (s *DocumentStore) Has(id string) bool {
	_, ok := s.docs[id]
	return ok
}

func (s *DocumentStore) Size() int {
	return len(s.ids)
}

// Ordinal returns the dense ordinal assigned to id.
func (s *DocumentStore) Ordinal(id string) (uint32, bool) {
	o, ok := s.ordinals[id]
	return o, ok
}

// ID is the inverse of Ordinal.
func (s *DocumentStore) ID(ordinal uint32) (string, bool) {
	if int(ordinal) >= len(s.ids) {
		return "", false
	}
	return s.ids[ordinal], true
}

// IDs returns every id in insertion order.
func (s *DocumentStore) IDs() []string {
	return slices.Clone(s.ids)
}

func (s *DocumentStore) SavesDocuments() bool {
	return s.save
}
