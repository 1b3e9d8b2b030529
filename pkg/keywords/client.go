// Package keywords provides a client for the keyword and content analysis
// API consumed by the SEO pipeline's AI stage.
package keywords

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the analysis operations.
type Client interface {
	// Analyze submits discovered keywords and page content and returns the
	// provider's analysis document verbatim.
	Analyze(ctx context.Context, req AnalyzeRequest) (json.RawMessage, error)
}

// AnalyzeRequest is the analysis input.
type AnalyzeRequest struct {
	Keywords []string `json:"keywords"`
	Content  string   `json:"content"`
}

// Option configures the keywords client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an analysis client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.x.ai/v1",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503).
func (c *httpClient) retryDo(ctx context.Context, makeReq func() (*http.Request, error)) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := makeReq()
		if err != nil {
			return nil, 0, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "keywords: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("keywords: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Analyze(ctx context.Context, areq AnalyzeRequest) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, eris.New("keywords: missing API key")
	}

	payload, err := json.Marshal(areq)
	if err != nil {
		return nil, eris.Wrap(err, "keywords: marshal request")
	}

	makeReq := func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, eris.Wrap(reqErr, "keywords: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	body, statusCode, err := c.retryDo(ctx, makeReq)
	if err != nil {
		return nil, eris.Wrap(err, "keywords: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("keywords: unexpected status %d: %s", statusCode, string(body))
	}
	if !json.Valid(body) {
		return nil, eris.New("keywords: invalid JSON response")
	}
	return json.RawMessage(body), nil
}
