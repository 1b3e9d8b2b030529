package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dawitel/optimetricsapi/internal/model"
)

func newChatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  model.Sentiment
	}{
		{name: "positive", reply: "POSITIVE", want: model.SentimentPositive},
		{name: "negative lowercase", reply: "negative", want: model.SentimentNegative},
		{name: "neutral with whitespace", reply: " NEUTRAL\n", want: model.SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newChatServer(t, tt.reply)
			c := NewClient("test-key", WithBaseURL(srv.URL))

			got, err := c.Classify(context.Background(), "some review text")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_UnexpectedLabel(t *testing.T) {
	t.Parallel()

	srv := newChatServer(t, "MIXED")
	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Classify(context.Background(), "meh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected label")
}

func TestClassify_MissingKeySkipsNetwork(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.Classify(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing API key")
	assert.False(t, called)
}

func TestClassify_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Classify(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
