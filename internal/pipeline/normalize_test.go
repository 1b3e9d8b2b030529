package pipeline

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dawitel/optimetricsapi/internal/model"
)

func TestNormalizeReview(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    model.RawReview
		check func(t *testing.T, got model.RawReview)
	}{
		{
			name: "rating above range clamped",
			in:   model.RawReview{ID: "r1", Rating: 7, Content: "x"},
			check: func(t *testing.T, got model.RawReview) {
				assert.Equal(t, 5.0, got.Rating)
			},
		},
		{
			name: "rating below range clamped",
			in:   model.RawReview{ID: "r1", Rating: -2, Content: "x"},
			check: func(t *testing.T, got model.RawReview) {
				assert.Equal(t, 0.0, got.Rating)
			},
		},
		{
			name: "long content truncated",
			in:   model.RawReview{ID: "r1", Content: strings.Repeat("a", 1200)},
			check: func(t *testing.T, got model.RawReview) {
				assert.Len(t, got.Content, 1000)
			},
		},
		{
			name: "truncation counts characters not bytes",
			in:   model.RawReview{ID: "r1", Content: strings.Repeat("é", 1200)},
			check: func(t *testing.T, got model.RawReview) {
				assert.Equal(t, 1000, utf8.RuneCountInString(got.Content))
				assert.True(t, utf8.ValidString(got.Content))
			},
		},
		{
			name: "truncation never splits a multi-byte character",
			in:   model.RawReview{ID: "r1", Content: strings.Repeat("a", 999) + "é" + strings.Repeat("a", 200)},
			check: func(t *testing.T, got model.RawReview) {
				assert.True(t, utf8.ValidString(got.Content))
				assert.Equal(t, 1000, utf8.RuneCountInString(got.Content))
				assert.True(t, strings.HasSuffix(got.Content, "é"))
			},
		},
		{
			name: "long title truncated",
			in:   model.RawReview{ID: "r1", Content: "x", Title: strings.Repeat("t", 300)},
			check: func(t *testing.T, got model.RawReview) {
				assert.Len(t, got.Title, 255)
			},
		},
		{
			name: "missing id assigned",
			in:   model.RawReview{Content: "x"},
			check: func(t *testing.T, got model.RawReview) {
				assert.NotEmpty(t, got.ID)
			},
		},
		{
			name: "missing date defaulted",
			in:   model.RawReview{ID: "r1", Content: "x"},
			check: func(t *testing.T, got model.RawReview) {
				assert.WithinDuration(t, time.Now().UTC(), got.Date, time.Minute)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.check(t, normalizeReview(tt.in))
		})
	}
}

func TestNormalizeReview_Idempotent(t *testing.T) {
	t.Parallel()

	in := model.RawReview{
		ID:      "r1",
		Rating:  9,
		Title:   strings.Repeat("t", 400),
		Content: strings.Repeat("c", 1500),
		Author:  "Alice",
		Source:  model.SourceTrustpilot,
		Date:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	once := normalizeReview(in)
	twice := normalizeReview(once)
	assert.Equal(t, once, twice)
}

func TestNormalizeReviews_KeepsOrderAndFields(t *testing.T) {
	t.Parallel()

	in := []model.RawReview{
		{ID: "a", Rating: 3, Content: "first", Date: time.Now()},
		{ID: "b", Rating: 4, Content: "second", Date: time.Now()},
	}
	got := normalizeReviews(in)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, 4.0, got[1].Rating)
}
