package ranker

import (
	"container/heap"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Better reports whether a ranks ahead of b: higher score first, then the
// smaller document id.
func Better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return index.CompareIDs(a.DocID, b.DocID) < 0
}

// TopK returns the k best documents in rank order. k <= 0 returns every
// document.
func TopK(docs []ScoredDoc, k int) []ScoredDoc {
	if k <= 0 || k >= len(docs) {
		out := slices.Clone(docs)
		slices.SortFunc(out, compare)
		return out
	}
	h := make(scoredDocHeap, 0, k+1)
	for _, d := range docs {
		if len(h) == k && !Better(d, h[0]) {
			continue
		}
		heap.Push(&h, d)
		if h.Len() > k {
			heap.Pop(&h)
		}
	}
	out := make([]ScoredDoc, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(ScoredDoc)
	}
	return out
}

func compare(a, b ScoredDoc) int {
	switch {
	case Better(a, b):
		return -1
	case Better(b, a):
		return 1
	default:
		return 0
	}
}

// scoredDocHeap keeps the worst document on top.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return Better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
