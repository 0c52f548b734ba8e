package trie

// FuzzySearch returns every term within maxDistance Levenshtein edits of
// token (insert, delete and substitute each cost 1), in lexical order.
//
// One row of the edit-distance matrix is computed per trie node, reusing the
// parent's row, and a branch is abandoned as soon as the smallest value in
// its row exceeds maxDistance: no extension of that prefix can come back
// under the bound.
func (t *Trie) FuzzySearch(token string, maxDistance int) []Match {
	if token == "" {
		return nil
	}
	if maxDistance <= 0 {
		p := t.Lookup(token)
		if p == nil {
			return nil
		}
		return []Match{{Token: token, Posting: p}}
	}

	query := []rune(token)
	first := make([]int, len(query)+1)
	for i := range first {
		first[i] = i
	}
	s := &fuzzySearch{query: query, max: maxDistance}
	for i, r := range t.root.keys {
		s.visit(t.root.children[i], r, first)
	}
	return s.out
}

type fuzzySearch struct {
	query []rune
	max   int
	term  []rune
	out   []Match
}

func (s *fuzzySearch) visit(n *node, r rune, prev []int) {
	cols := len(s.query) + 1
	row := make([]int, cols)
	row[0] = prev[0] + 1
	best := row[0]
	for j := 1; j < cols; j++ {
		cost := 1
		if s.query[j-1] == r {
			cost = 0
		}
		row[j] = min(row[j-1]+1, prev[j]+1, prev[j-1]+cost)
		best = min(best, row[j])
	}

	s.term = append(s.term, r)
	defer func() { s.term = s.term[:len(s.term)-1] }()

	if d := row[cols-1]; n.posting != nil && d <= s.max {
		s.out = append(s.out, Match{Token: string(s.term), Posting: n.posting, Distance: d})
	}
	if best > s.max {
		return
	}
	for i, cr := range n.keys {
		s.visit(n.children[i], cr, row)
	}
}
