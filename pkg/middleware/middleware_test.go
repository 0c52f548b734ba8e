package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
	}))
	rec := serve(h, "/", nil)
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
	}))
	rec := serve(h, "/", func(r *http.Request) { r.Header.Set(RequestIDHeader, "abc-123") })
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	h := RateLimit(l)(ok)
	from := func(addr string) func(*http.Request) {
		return func(r *http.Request) { r.RemoteAddr = addr }
	}

	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/search", from("10.0.0.1:5000")).Code)
	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/search", from("10.0.0.1:5001")).Code)
	rec := serve(h, "/api/v1/search", from("10.0.0.1:5002"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, serve(h, "/health/live", from("10.0.0.1:5003")).Code)
	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/search", from("10.0.0.2:5000")).Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/search", from("10.0.0.1:5004")).Code)
}

func TestRateLimitForwardedFor(t *testing.T) {
	l := NewRateLimiter(1, 1)
	h := RateLimit(l)(ok)
	fwd := func(v string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("X-Forwarded-For", v) }
	}
	assert.Equal(t, http.StatusOK, serve(h, "/", fwd("1.1.1.1, 10.0.0.1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "/", fwd("1.1.1.1")).Code)
	assert.Equal(t, http.StatusOK, serve(h, "/", fwd("2.2.2.2")).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	l := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("c"))
	}
}

func TestRateLimiterSweep(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(idleClientTTL + time.Second)
	l.Allow("new")
	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.clients, 1)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		<-release
		w.WriteHeader(http.StatusOK)
	})
	rec := serve(Timeout(20*time.Millisecond)(slow), "/", nil)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"error":"request timeout"}`, rec.Body.String())

	rec = serve(Timeout(time.Second)(ok), "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := Metrics(m, "/api/v1/search")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	serve(h, "/api/v1/search", nil)
	serve(h, "/api/v1/search", nil)
	serve(h, "/wp-admin", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/search", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "other", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://docs.example.org"})(ok)

	rec := serve(h, "/api/v1/search", func(r *http.Request) { r.Header.Set("Origin", "https://docs.example.org") })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://docs.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec = serve(h, "/api/v1/search", func(r *http.Request) { r.Header.Set("Origin", "https://evil.example") })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(h, "/api/v1/search", func(r *http.Request) {
		r.Method = http.MethodOptions
		r.Header.Set("Origin", "https://docs.example.org")
		r.Header.Set("Access-Control-Request-Method", "GET")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSWildcard(t *testing.T) {
	h := CORS([]string{"*"})(ok)
	rec := serve(h, "/", func(r *http.Request) { r.Header.Set("Origin", "http://localhost:3000") })
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(h, "/", nil)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestTimeoutForwardsBufferedResponse(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	rec := serve(h, "/", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestTimeoutRepanics(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	assert.PanicsWithValue(t, "boom", func() { serve(h, "/", nil) })
}
