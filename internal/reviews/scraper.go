// Package reviews scrapes customer reviews from public review platforms.
// Scrapers are best-effort by contract: callers treat any error as "no
// reviews from this source" rather than failing the run.
package reviews

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/dawitel/optimetricsapi/internal/model"
)

// Scraper fetches raw reviews for one platform.
type Scraper interface {
	Source() model.ReviewSource
	Scrape(ctx context.Context, siteURL string) ([]model.RawReview, error)
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// fetcher is the shared HTTP plumbing for both scrapers.
type fetcher struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func newFetcher() fetcher {
	return fetcher{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
	}
}

func (f *fetcher) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reviews: rate limit wait")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "reviews: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "reviews: get %s", reqURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, eris.Errorf("reviews: get %s: status %d", reqURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "reviews: read %s", reqURL)
	}
	return body, nil
}
