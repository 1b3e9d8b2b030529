package reviews

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/dawitel/optimetricsapi/internal/model"
)

// GoogleScraper extracts place reviews from a Google Maps search for the
// site's host. Google's markup is volatile, so extraction is best-effort.
type GoogleScraper struct {
	fetcher fetcher
	baseURL string
}

// GoogleOption configures the scraper.
type GoogleOption func(*GoogleScraper)

// WithGoogleBaseURL overrides the Google host (for testing).
func WithGoogleBaseURL(base string) GoogleOption {
	return func(s *GoogleScraper) {
		s.baseURL = base
	}
}

// NewGoogle creates a Google reviews scraper.
func NewGoogle(opts ...GoogleOption) *GoogleScraper {
	s := &GoogleScraper{
		fetcher: newFetcher(),
		baseURL: "https://www.google.com",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GoogleScraper) Source() model.ReviewSource {
	return model.SourceGoogle
}

func (s *GoogleScraper) Scrape(ctx context.Context, siteURL string) ([]model.RawReview, error) {
	host, err := hostOf(siteURL)
	if err != nil {
		return nil, err
	}

	body, err := s.fetcher.get(ctx, fmt.Sprintf("%s/maps/search/%s", s.baseURL, url.PathEscape(host)))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "reviews: parse google page")
	}

	var reviews []model.RawReview
	doc.Find("div[data-review-id]").Each(func(_ int, card *goquery.Selection) {
		content := strings.TrimSpace(card.Find("span[data-review-text]").Text())
		if content == "" {
			content = strings.TrimSpace(card.Find(".review-full-text").Text())
		}
		if content == "" {
			return
		}

		r := model.RawReview{
			ID:      card.AttrOr("data-review-id", ""),
			Rating:  googleRating(card),
			Content: content,
			Author:  strings.TrimSpace(card.Find("[data-reviewer-name]").Text()),
			Source:  model.SourceGoogle,
			Data:    map[string]any{},
		}
		if dateText := strings.TrimSpace(card.Find("[data-review-date]").Text()); dateText != "" {
			r.Data["original_date_text"] = dateText
			if parsed, ok := parseRelativeDate(dateText); ok {
				r.Date = parsed
			}
		}
		reviews = append(reviews, r)
	})
	return reviews, nil
}

// googleRating reads ratings written as aria labels like "5 stars" or
// "Rated 4.0 out of 5".
func googleRating(card *goquery.Selection) float64 {
	label, ok := card.Find("[role=img]").Attr("aria-label")
	if !ok {
		label, _ = card.Find("[data-review-rating]").Attr("data-review-rating")
	}
	for _, field := range strings.Fields(label) {
		if v, err := strconv.ParseFloat(field, 64); err == nil {
			return v
		}
	}
	return 0
}
