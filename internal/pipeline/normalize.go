package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/dawitel/optimetricsapi/internal/model"
)

const (
	maxContentLen = 1000
	maxTitleLen   = 255
)

// normalizeReview makes a scraped record safe to persist. It is total: any
// input yields a valid record, never an error.
func normalizeReview(r model.RawReview) model.RawReview {
	if r.Rating < 0 {
		r.Rating = 0
	}
	if r.Rating > 5 {
		r.Rating = 5
	}
	r.Content = truncateRunes(r.Content, maxContentLen)
	r.Title = truncateRunes(r.Title, maxTitleLen)
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Date.IsZero() {
		r.Date = time.Now().UTC()
	}
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	return r
}

// truncateRunes cuts s to at most max characters without splitting a
// multi-byte character.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// normalizeReviews normalizes every record, keeping order.
func normalizeReviews(in []model.RawReview) []model.RawReview {
	out := make([]model.RawReview, 0, len(in))
	for _, r := range in {
		out = append(out, normalizeReview(r))
	}
	return out
}
