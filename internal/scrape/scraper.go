// Package scrape fetches and analyzes a site's landing page for the SEO
// pipeline.
package scrape

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dawitel/optimetricsapi/internal/model"
)

// SiteScraper defines the probes and extraction the SEO pipeline needs.
type SiteScraper interface {
	// HeadCheck issues a HEAD request and reports whether the site answered
	// with a non-5xx status.
	HeadCheck(ctx context.Context, siteURL string) error
	// CheckSitemap reports whether <site>/sitemap.xml responds 200.
	CheckSitemap(ctx context.Context, siteURL string) (bool, error)
	// CheckRobots reports whether <site>/robots.txt responds 200.
	CheckRobots(ctx context.Context, siteURL string) (bool, error)
	// Scrape fetches the page and derives the full metrics accumulator.
	Scrape(ctx context.Context, siteURL string) (*model.SeoMetrics, error)
}

// Option configures the scraper.
type Option func(*httpScraper)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *httpScraper) {
		s.http = hc
	}
}

// WithTimeout bounds each outbound request.
func WithTimeout(d time.Duration) Option {
	return func(s *httpScraper) {
		if d > 0 {
			s.http.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *httpScraper) {
		s.userAgent = ua
	}
}

// WithRateLimit bounds outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(s *httpScraper) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpScraper struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// New creates a SiteScraper with sane defaults.
func New(opts ...Option) SiteScraper {
	s := &httpScraper{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "Mozilla/5.0 (compatible; OptimetricsBot/1.0)",
		limiter:   rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *httpScraper) do(ctx context.Context, method, reqURL string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scrape: rate limit wait")
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: %s %s", method, reqURL)
	}
	return resp, nil
}

func (s *httpScraper) HeadCheck(ctx context.Context, siteURL string) error {
	resp, err := s.do(ctx, http.MethodHead, siteURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return eris.Errorf("scrape: site returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *httpScraper) CheckSitemap(ctx context.Context, siteURL string) (bool, error) {
	return s.probe(ctx, siteURL, "/sitemap.xml")
}

func (s *httpScraper) CheckRobots(ctx context.Context, siteURL string) (bool, error) {
	return s.probe(ctx, siteURL, "/robots.txt")
}

func (s *httpScraper) probe(ctx context.Context, siteURL, path string) (bool, error) {
	base, err := url.Parse(siteURL)
	if err != nil {
		return false, eris.Wrapf(err, "scrape: parse url %s", siteURL)
	}
	base.Path = path
	base.RawQuery = ""

	resp, err := s.do(ctx, http.MethodGet, base.String())
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

func (s *httpScraper) Scrape(ctx context.Context, siteURL string) (*model.SeoMetrics, error) {
	start := time.Now()
	resp, err := s.do(ctx, http.MethodGet, siteURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, eris.Errorf("scrape: fetch %s: status %d", siteURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: parse %s", siteURL)
	}
	loadTime := time.Since(start)

	// The technical probes are independent of the page parse. They are soft
	// signals, so a failed probe reads as absent rather than aborting.
	var hasSitemap, hasRobots bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, _ := s.CheckSitemap(gctx, siteURL)
		hasSitemap = ok
		return nil
	})
	g.Go(func() error {
		ok, _ := s.CheckRobots(gctx, siteURL)
		hasRobots = ok
		return nil
	})
	_ = g.Wait()

	metrics := extractMetrics(doc, siteURL, loadTime)
	metrics.Raw.Technical.HasSSL = strings.HasPrefix(strings.ToLower(siteURL), "https://")
	metrics.Raw.Technical.HasSitemap = hasSitemap
	metrics.Raw.Technical.HasRobotsTxt = hasRobots
	metrics.Raw.Technical.ResponseTimeMS = loadTime.Milliseconds()

	return metrics, nil
}
