package model

import "time"

// Sentiment is a classification label for review content.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// RawReview is one review record as extracted by a source scraper, before
// normalization. The Data map carries source-specific extras and, after the
// sentiment stage, the derived sentiment label.
type RawReview struct {
	ID      string         `json:"id"`
	Rating  float64        `json:"rating"`
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Author  string         `json:"author"`
	Date    time.Time      `json:"date"`
	Source  ReviewSource   `json:"source"`
	Data    map[string]any `json:"data,omitempty"`
}
