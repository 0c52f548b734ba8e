// Package logger configures slog for the services and carries the request
// id through contexts. Records logged with a *Context method pick the id up
// automatically.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

const requestIDKey = "request_id"

type contextKey struct{}

// Setup installs the process-wide default logger writing to stdout.
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger at level ("debug", "info", "warn", "error", or an
// offset such as "debug+2") in format "json" or text. Unknown levels fall
// back to info. Debug loggers also report the call site.
func New(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(&contextHandler{Handler: h})
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the request id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// FromContext returns the default logger bound to ctx's request id.
func FromContext(ctx context.Context) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return slog.Default().With(requestIDKey, id)
	}
	return slog.Default()
}

// contextHandler adds the request id of the record's context unless the
// logger was already bound to one.
type contextHandler struct {
	slog.Handler
	bound bool
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.bound {
		if id := RequestID(ctx); id != "" {
			r.AddAttrs(slog.String(requestIDKey, id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := h.bound
	for _, a := range attrs {
		if a.Key == requestIDKey {
			bound = true
		}
	}
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), bound: bound}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), bound: h.bound}
}
