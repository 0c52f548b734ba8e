// Package benchmark measures indexing, snapshot and query throughput over
// a synthetic documentation corpus.
package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

var vocabulary = []string{
	"chunk", "biome", "packet", "protocol", "handshake", "server", "player",
	"dimension", "encoding", "decoder", "inventory", "entity", "block",
	"region", "compression", "connection", "login", "status", "world", "light",
}

// corpus returns n pages whose text cycles through vocabulary so every
// term has a predictable document frequency.
func corpus(n int) source.Slice {
	docs := make(source.Slice, n)
	for i := range docs {
		v := func(k int) string { return vocabulary[(i*7+k)%len(vocabulary)] }
		body := strings.Repeat(fmt.Sprintf("The %s %s is sent after the %s. ", v(0), v(1), v(2)), 8)
		docs[i] = source.Document{
			ID:  fmt.Sprintf("%d", i),
			URL: fmt.Sprintf("docs/%s/%d.html", v(0), i),
			Fields: map[string]string{
				"title":       fmt.Sprintf("%s %s", strings.ToUpper(v(0)[:1])+v(0)[1:], v(3)),
				"body":        body,
				"breadcrumbs": fmt.Sprintf("Protocol » %s", v(4)),
			},
		}
	}
	return docs
}

func defaultPipeline(b *testing.B) *pipeline.Pipeline {
	b.Helper()
	p, err := pipeline.New(config.Default().Indexer.Pipeline)
	if err != nil {
		b.Fatal(err)
	}
	return p
}

func buildIndex(b *testing.B, n int) *index.Index {
	b.Helper()
	idx, err := indexer.Build(context.Background(), corpus(n), config.Default().Indexer)
	if err != nil {
		b.Fatal(err)
	}
	return idx
}
