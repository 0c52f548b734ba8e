package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := Start(ctx, "search")
	assert.Equal(t, "req-1", root.TraceID)
	assert.Same(t, root, FromContext(ctx))

	_, parse := Start(ctx, "parse")
	parse.End()
	qctx, query := Start(ctx, "query")
	_, exec := Start(qctx, "execute")
	exec.End()
	query.End()
	root.End()

	assert.Equal(t, "req-1", exec.TraceID)
	require.Len(t, root.Children(), 2)
	assert.Equal(t, "parse", root.Children()[0].Name)

	d := root.Durations()
	assert.Len(t, d, 4)
	for _, path := range []string{"search", "search/parse", "search/query", "search/query/execute"} {
		assert.Positive(t, d[path], path)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := Start(context.Background(), "x")
	s.End()
	first := s.Duration
	s.End()
	assert.Equal(t, first, s.Duration)

	var nilSpan *Span
	nilSpan.End()
	nilSpan.SetAttr("k", "v")
}

func TestLogOnlyAtDebug(t *testing.T) {
	ctx, root := Start(context.Background(), "search")
	root.SetAttr("query", "chunks")
	_, child := Start(ctx, "present")
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(ctx, logger.New(&buf, "info", "text"))
	assert.Empty(t, buf.String())

	root.Log(ctx, logger.New(&buf, "debug", "text"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=search")
	assert.Contains(t, lines[0], "query=chunks")
	assert.Contains(t, lines[1], "span=search/present")
	assert.Contains(t, lines[1], "depth=1")
}
