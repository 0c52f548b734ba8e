package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	var ls []time.Duration
	for i := 1; i <= 100; i++ {
		ls = append(ls, time.Duration(i)*time.Millisecond)
	}
	assert.Equal(t, 50*time.Millisecond, percentile(ls, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(ls, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(ls, 100))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestStatsReport(t *testing.T) {
	s := NewStats()
	s.RecordRequest(2*time.Millisecond, http.StatusOK, 3, nil)
	s.RecordRequest(4*time.Millisecond, http.StatusOK, 0, nil)
	s.RecordRequest(time.Millisecond, http.StatusTooManyRequests, 0, nil)
	s.RecordRequest(0, 0, 0, errors.New("refused"))

	var buf bytes.Buffer
	assert.Equal(t, int64(4), s.Report(&buf, time.Second))
	out := buf.String()
	assert.Contains(t, out, "Successful:      2")
	assert.Contains(t, out, "Zero results:    1")
	assert.Contains(t, out, "Errors:          2")
	assert.Contains(t, out, "  429: 1")
	assert.Contains(t, out, "Max:    4ms")
}

func TestSearchDecodesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "world^5 connection", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"query":"x","total_hits":7,"results":[]}`))
	}))
	defer srv.Close()
	status, hits, err := search(t.Context(), srv.Client(), srv.URL+"/api/v1/search?q=world%5E5+connection")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 7, hits)
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nchunk\n\n  biome~1 \n"), 0o644))
	qs, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk", "biome~1"}, qs)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = readQueries(empty)
	assert.Error(t, err)
}
