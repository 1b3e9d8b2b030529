// Package sentiment provides a client for an OpenAI-compatible
// chat-completions API used to classify review text.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dawitel/optimetricsapi/internal/model"
)

// Client classifies free text into a sentiment label.
type Client interface {
	// Classify returns POSITIVE, NEGATIVE or NEUTRAL for the given text.
	Classify(ctx context.Context, text string) (model.Sentiment, error)
}

const systemPrompt = "You are a sentiment classifier. Respond with exactly one word: POSITIVE, NEGATIVE, or NEUTRAL."

// Option configures the sentiment client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the model name.
func WithModel(m string) Option {
	return func(c *httpClient) {
		c.model = m
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
	model   string
	http    *http.Client
}

// NewClient creates a sentiment classifier client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.aimlapi.com/v1",
		model:   "mistralai/Mistral-7B-Instruct-v0.2",
		http: &http.Client{
			Timeout: 30 * time.Second,
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

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *httpClient) Classify(ctx context.Context, text string) (model.Sentiment, error) {
	if c.apiKey == "" {
		return "", eris.New("sentiment: missing API key")
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: 0,
		MaxTokens:   5,
	})
	if err != nil {
		return "", eris.Wrap(err, "sentiment: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "sentiment: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "sentiment: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("sentiment: unexpected status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", eris.Wrap(err, "sentiment: decode response")
	}
	if len(result.Choices) == 0 {
		return "", eris.New("sentiment: empty response")
	}

	label := model.Sentiment(strings.ToUpper(strings.TrimSpace(result.Choices[0].Message.Content)))
	switch label {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
		return label, nil
	}
	return "", eris.Errorf("sentiment: unexpected label %q", label)
}
