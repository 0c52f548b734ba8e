// Package trie stores index terms in a per-rune prefix tree. The node that
// terminates a term owns the term's Posting. Nodes only reference their
// children, so a term is always reconstructed top-down while walking.
//
// A Trie is built by a single goroutine; once the owning index is sealed it
// is only read and may be shared between goroutines without locking.
package trie

import "slices"

type node struct {
	keys     []rune
	children []*node
	posting  *Posting
}

func (n *node) child(r rune) *node {
	i, ok := slices.BinarySearch(n.keys, r)
	if !ok {
		return nil
	}
	return n.children[i]
}

func (n *node) childOrCreate(r rune) *node {
	i, ok := slices.BinarySearch(n.keys, r)
	if ok {
		return n.children[i]
	}
	c := &node{}
	n.keys = slices.Insert(n.keys, i, r)
	n.children = slices.Insert(n.children, i, c)
	return c
}

// Match is a term found by a prefix or fuzzy search. Distance is the edit
// distance for fuzzy matches and the number of extra runes for prefix
// matches; zero means the term equals the query.
type Match struct {
	Token    string
	Posting  *Posting
	Distance int
}

type Trie struct {
	root *node
	size int
}

func New() *Trie {
	return &Trie{root: &node{}}
}

// Insert adds count occurrences of token in field of docID. Empty tokens
// and non-positive counts are ignored.
func (t *Trie) Insert(token, docID, field string, count float64) {
	if token == "" || count <= 0 {
		return
	}
	n := t.root
	for _, r := range token {
		n = n.childOrCreate(r)
	}
	if n.posting == nil {
		n.posting = newPosting()
		t.size++
	}
	n.posting.add(docID, field, count)
}

// Len returns the number of distinct terms.
func (t *Trie) Len() int {
	return t.size
}

func (t *Trie) find(prefix string) *node {
	n := t.root
	for _, r := range prefix {
		if n = n.child(r); n == nil {
			return nil
		}
	}
	return n
}

// Lookup returns the posting of token, or nil when it is not indexed.
func (t *Trie) Lookup(token string) *Posting {
	if token == "" {
		return nil
	}
	n := t.find(token)
	if n == nil {
		return nil
	}
	return n.posting
}

// PrefixSearch returns every term starting with prefix in lexical order,
// including prefix itself when it is a term.
func (t *Trie) PrefixSearch(prefix string) []Match {
	if prefix == "" {
		return nil
	}
	n := t.find(prefix)
	if n == nil {
		return nil
	}
	var out []Match
	buf := []rune(prefix)
	base := len(buf)
	walk(n, buf, func(term []rune, p *Posting) bool {
		out = append(out, Match{Token: string(term), Posting: p, Distance: len(term) - base})
		return true
	})
	return out
}

// Walk visits every term in lexical order until fn returns false.
func (t *Trie) Walk(fn func(token string, p *Posting) bool) {
	walk(t.root, nil, func(term []rune, p *Posting) bool {
		return fn(string(term), p)
	})
}

func walk(n *node, term []rune, fn func([]rune, *Posting) bool) bool {
	if n.posting != nil && !fn(term, n.posting) {
		return false
	}
	for i, r := range n.keys {
		if !walk(n.children[i], append(term, r), fn) {
			return false
		}
	}
	return true
}
