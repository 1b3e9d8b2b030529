package reviews

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/dawitel/optimetricsapi/internal/model"
)

// TrustpilotScraper extracts reviews from a site's public Trustpilot page.
type TrustpilotScraper struct {
	fetcher fetcher
	baseURL string
}

// TrustpilotOption configures the scraper.
type TrustpilotOption func(*TrustpilotScraper)

// WithTrustpilotBaseURL overrides the Trustpilot host (for testing).
func WithTrustpilotBaseURL(base string) TrustpilotOption {
	return func(s *TrustpilotScraper) {
		s.baseURL = base
	}
}

// NewTrustpilot creates a Trustpilot scraper.
func NewTrustpilot(opts ...TrustpilotOption) *TrustpilotScraper {
	s := &TrustpilotScraper{
		fetcher: newFetcher(),
		baseURL: "https://www.trustpilot.com",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TrustpilotScraper) Source() model.ReviewSource {
	return model.SourceTrustpilot
}

func (s *TrustpilotScraper) Scrape(ctx context.Context, siteURL string) ([]model.RawReview, error) {
	host, err := hostOf(siteURL)
	if err != nil {
		return nil, err
	}

	body, err := s.fetcher.get(ctx, fmt.Sprintf("%s/review/%s", s.baseURL, host))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "reviews: parse trustpilot page")
	}

	var reviews []model.RawReview
	doc.Find("article[data-service-review-card-paper]").Each(func(_ int, card *goquery.Selection) {
		content := strings.TrimSpace(card.Find("[data-service-review-text-typography]").Text())
		if content == "" {
			// Rating-only cards carry no analyzable text.
			return
		}

		r := model.RawReview{
			ID:      card.AttrOr("data-review-id", ""),
			Rating:  starRating(card),
			Title:   strings.TrimSpace(card.Find("[data-service-review-title-typography]").Text()),
			Content: content,
			Author:  strings.TrimSpace(card.Find("[data-consumer-name-typography]").Text()),
			Source:  model.SourceTrustpilot,
			Data:    map[string]any{},
		}
		if dt, ok := card.Find("time").Attr("datetime"); ok {
			if parsed, perr := time.Parse(time.RFC3339, dt); perr == nil {
				r.Date = parsed
			}
			r.Data["original_date_text"] = dt
		}
		if card.Find("[data-review-label-verified]").Length() > 0 {
			r.Data["verified"] = true
		}
		reviews = append(reviews, r)
	})
	return reviews, nil
}

// starRating reads the rating from the star image's alt text, e.g.
// "Rated 4 out of 5 stars".
func starRating(card *goquery.Selection) float64 {
	alt, ok := card.Find("[data-service-review-rating] img").Attr("alt")
	if !ok {
		return 0
	}
	for _, field := range strings.Fields(alt) {
		if v, err := strconv.ParseFloat(field, 64); err == nil {
			return v
		}
	}
	return 0
}

func hostOf(siteURL string) (string, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", eris.Wrapf(err, "reviews: parse url %s", siteURL)
	}
	host := u.Host
	if host == "" {
		host = u.Path
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" {
		return "", eris.Errorf("reviews: no host in url %s", siteURL)
	}
	return host, nil
}
