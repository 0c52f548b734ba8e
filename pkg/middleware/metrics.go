// Package middleware provides the HTTP middleware chain of the services:
// request IDs, Prometheus metrics, CORS, rate limiting and request timeouts.
package middleware

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

const otherRoute = "other"

// Metrics records request count, latency and in-flight requests. Only the
// listed routes become path labels; everything else is counted as "other"
// so arbitrary URLs cannot blow up label cardinality. With no routes the
// raw path is used.
func Metrics(m *metrics.Metrics, routes ...string) func(http.Handler) http.Handler {
	label := func(path string) string {
		if len(routes) == 0 || slices.Contains(routes, path) {
			return path
		}
		return otherRoute
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := label(r.URL.Path)
			timer := prometheus.NewTimer(m.HTTPRequestDuration.WithLabelValues(r.Method, path))
			m.HTTPRequestsInFlight.Inc()

			sw := &statusWriter{ResponseWriter: w}
			defer func() {
				m.HTTPRequestsInFlight.Dec()
				timer.ObserveDuration()
				m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.code())).Inc()
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

// statusWriter remembers the first status code sent.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

func (sw *statusWriter) code() int {
	if sw.status == 0 {
		return http.StatusOK
	}
	return sw.status
}
