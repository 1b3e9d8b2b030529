package keywords

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"widgets", "acme"}, req.Keywords)

		w.Write([]byte(`{"summary":"strong keyword focus","score":82}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.Analyze(context.Background(), AnalyzeRequest{
		Keywords: []string{"widgets", "acme"},
		Content:  "Premium widgets manufactured since 1985.",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"strong keyword focus","score":82}`, string(got))
}

func TestAnalyze_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.Analyze(context.Background(), AnalyzeRequest{Keywords: []string{"x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnalyze_MissingKey(t *testing.T) {
	t.Parallel()

	c := NewClient("")
	_, err := c.Analyze(context.Background(), AnalyzeRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing API key")
}

func TestAnalyze_BadRequestNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Analyze(context.Background(), AnalyzeRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}
