// Package tracing times the stages of a request as a tree of spans carried
// in the context. A finished tree is written to the request's logger, one
// record per span, keyed by the request id.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

type contextKey struct{}

// Span is one timed stage. Children are appended by Start while the span
// is in the context.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []any
}

// Start opens a span named name. It becomes a child of the span already in
// ctx, or a root span traced by the request id when there is none.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = logger.RequestID(ctx)
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End fixes the span's duration. Calling it again has no effect.
func (s *Span) End() {
	if s == nil || s.Duration > 0 {
		return
	}
	s.Duration = max(time.Since(s.Start), time.Nanosecond)
}

// SetAttr attaches a key-value pair logged with the span.
func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Children returns the spans started under s, in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Durations flattens the tree into "parent/child" paths.
func (s *Span) Durations() map[string]time.Duration {
	out := make(map[string]time.Duration)
	s.collect("", out)
	return out
}

func (s *Span) collect(prefix string, out map[string]time.Duration) {
	path := s.Name
	if prefix != "" {
		path = prefix + "/" + s.Name
	}
	out[path] = s.Duration
	for _, c := range s.Children() {
		c.collect(path, out)
	}
}

// Log writes the span tree to l at debug level.
func (s *Span) Log(ctx context.Context, l *slog.Logger) {
	if s == nil || !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.log(ctx, l, "", 0)
}

func (s *Span) log(ctx context.Context, l *slog.Logger, prefix string, depth int) {
	path := s.Name
	if prefix != "" {
		path = prefix + "/" + s.Name
	}
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", path,
		"depth", depth,
		"duration_us", s.Duration.Microseconds(),
	}, s.attrs...)
	s.mu.Unlock()
	l.DebugContext(ctx, "span", attrs...)
	for _, c := range s.Children() {
		c.log(ctx, l, path, depth+1)
	}
}
