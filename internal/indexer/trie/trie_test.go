package trie

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTrie(terms ...string) *Trie {
	tr := New()
	for i, term := range terms {
		tr.Insert(term, fmt.Sprintf("%d", i), "body", 1)
	}
	return tr
}

func tokens(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Token
	}
	return out
}

func TestInsertAccumulates(t *testing.T) {
	tr := New()
	tr.Insert("world", "1", "title", 1)
	tr.Insert("world", "1", "title", 2)
	tr.Insert("world", "1", "body", 1)
	tr.Insert("world", "2", "body", 4)

	p := tr.Lookup("world")
	require.NotNil(t, p)
	assert.Equal(t, 2, p.DocFrequency())
	assert.Equal(t, 3.0, p.Frequency("1", "title"))
	assert.Equal(t, 1.0, p.Frequency("1", "body"))
	assert.Equal(t, 4.0, p.Frequency("2", "body"))
	assert.Equal(t, 0.0, p.Frequency("3", "body"))
	assert.Equal(t, []string{"1", "2"}, p.DocIDs())

	e, ok := p.Entry("1")
	require.True(t, ok)
	assert.Equal(t, 4.0, e.Total())
	assert.Equal(t, 1, tr.Len())
}

func TestInsertIgnoresEmptyTokenAndZeroCount(t *testing.T) {
	tr := New()
	tr.Insert("", "1", "body", 1)
	tr.Insert("word", "1", "body", 0)
	assert.Equal(t, 0, tr.Len())
	assert.Nil(t, tr.Lookup(""))
	assert.Nil(t, tr.Lookup("word"))
}

func TestLookupPrefixIsNotATerm(t *testing.T) {
	tr := buildTrie("connect")
	assert.Nil(t, tr.Lookup("conn"))
	assert.Nil(t, tr.Lookup("connects"))
	assert.NotNil(t, tr.Lookup("connect"))
	assert.Equal(t, 0, tr.Lookup("conn").DocFrequency())
}

func TestPrefixSearch(t *testing.T) {
	tr := buildTrie("apple", "app", "banana", "appl", "apricot", "äpfel")

	got := tr.PrefixSearch("app")
	assert.Equal(t, []string{"app", "appl", "apple"}, tokens(got))
	assert.Equal(t, []int{0, 1, 2}, []int{got[0].Distance, got[1].Distance, got[2].Distance})

	assert.Equal(t, []string{"äpfel"}, tokens(tr.PrefixSearch("äp")))
	assert.Empty(t, tr.PrefixSearch("xyz"))
	assert.Empty(t, tr.PrefixSearch(""))
}

func TestWalkLexicalOrder(t *testing.T) {
	tr := buildTrie("b", "ab", "a", "abc", "c")
	var seen []string
	tr.Walk(func(token string, p *Posting) bool {
		assert.Equal(t, 1, p.DocFrequency())
		seen = append(seen, token)
		return true
	})
	assert.Equal(t, []string{"a", "ab", "abc", "b", "c"}, seen)

	seen = nil
	tr.Walk(func(token string, _ *Posting) bool {
		seen = append(seen, token)
		return len(seen) < 2
	})
	assert.Equal(t, []string{"a", "ab"}, seen)
}

func TestFuzzySearch(t *testing.T) {
	tr := buildTrie("connect", "collect", "correct", "connector", "world", "word", "sword")

	got := tr.FuzzySearch("conect", 1)
	assert.Equal(t, []string{"connect"}, tokens(got))
	assert.Equal(t, 1, got[0].Distance)

	got = tr.FuzzySearch("connect", 2)
	assert.Equal(t, []string{"collect", "connect", "connector", "correct"}, tokens(got))

	got = tr.FuzzySearch("word", 1)
	assert.Equal(t, []string{"sword", "word", "world"}, tokens(got))
	assert.Equal(t, []int{1, 0, 1}, []int{got[0].Distance, got[1].Distance, got[2].Distance})

	assert.Empty(t, tr.FuzzySearch("zzzzzz", 2))
	assert.Empty(t, tr.FuzzySearch("", 2))
}

func TestFuzzyZeroDistanceEqualsLookup(t *testing.T) {
	tr := buildTrie("connect", "world", "store")
	for _, q := range []string{"connect", "world", "worl", "missing", "store"} {
		got := tr.FuzzySearch(q, 0)
		p := tr.Lookup(q)
		if p == nil {
			assert.Empty(t, got, q)
			continue
		}
		require.Len(t, got, 1, q)
		assert.Same(t, p, got[0].Posting)
		assert.Equal(t, 0, got[0].Distance)
	}
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur := make([]int, len(rb)+1)
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev = cur
	}
	return prev[len(rb)]
}

func TestFuzzyMatchesBruteForce(t *testing.T) {
	vocab := []string{
		"chunk", "chunks", "church", "check", "biome", "biomes", "bio", "packet",
		"packed", "pack", "protocol", "proto", "play", "player", "plan", "planned",
		"server", "serve", "sever", "world", "worlds", "word", "handshake", "hand",
	}
	tr := buildTrie(vocab...)
	for _, q := range []string{"chunk", "plaer", "servr", "wrld", "bioms", "pakcet", "x"} {
		for maxD := 1; maxD <= 3; maxD++ {
			var want []string
			tr.Walk(func(token string, _ *Posting) bool {
				if levenshtein(q, token) <= maxD {
					want = append(want, token)
				}
				return true
			})
			got := tr.FuzzySearch(q, maxD)
			assert.Equal(t, want, tokens(got), "%s~%d", q, maxD)
			for _, m := range got {
				assert.Equal(t, levenshtein(q, m.Token), m.Distance, m.Token)
			}
		}
	}
}

func BenchmarkFuzzySearch(b *testing.B) {
	tr := New()
	for i := 0; i < 20000; i++ {
		tr.Insert(fmt.Sprintf("term%dx%d", i%977, i), "d", "body", 1)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tr.FuzzySearch("term42x4200", 2)
	}
}
