package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Acme Widgets</title>
	<meta name="description" content="Widgets for every occasion">
	<meta name="keywords" content="widgets, industrial widgets, acme">
	<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
	<h1>Industrial Widgets</h1>
	<h2>Trusted by thousands</h2>
	<a href="/catalog">Catalog</a>
	<a href="https://partner-one.com/ref">Partner One</a>
	<a href="https://partner-two.org/about">Partner Two</a>
	<a href="#top">Back to top</a>
	<img src="/logo.png" alt="Acme logo">
	<p>Premium widgets manufactured since 1985.</p>
</body>
</html>`

func newFixtureServer(t *testing.T, sitemap, robots bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			if !sitemap {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`<urlset></urlset>`))
		case "/robots.txt":
			if !robots {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte("User-agent: *\nAllow: /\n"))
		default:
			w.Write([]byte(fixtureHTML))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestScraper() SiteScraper {
	// High rate limit so tests never sleep.
	return New(WithRateLimit(1000))
}

func TestScrape_ExtractsPageData(t *testing.T) {
	t.Parallel()

	srv := newFixtureServer(t, true, true)
	s := newTestScraper()

	metrics, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Acme Widgets", metrics.Raw.MetaTags["title"])
	assert.Equal(t, "Widgets for every occasion", metrics.Raw.MetaTags["description"])
	assert.Equal(t, []string{"Industrial Widgets"}, metrics.Raw.Headings["h1"])

	// The fragment-only anchor is dropped.
	require.Len(t, metrics.Raw.Links, 3)
	assert.True(t, metrics.Raw.Links[0].IsInternal)
	assert.False(t, metrics.Raw.Links[1].IsInternal)

	require.Len(t, metrics.Raw.Images, 1)
	assert.Equal(t, "Acme logo", metrics.Raw.Images[0].Alt)

	assert.Equal(t, 2, metrics.Backlinks)
	assert.Equal(t, 2, metrics.ReferringDomains)
	assert.True(t, metrics.MobileFriendly)
	assert.Equal(t, 100, metrics.SiteAuditScore)
	assert.Zero(t, metrics.SiteAuditIssues)
	assert.True(t, metrics.Raw.Technical.HasSitemap)
	assert.True(t, metrics.Raw.Technical.HasRobotsTxt)
	assert.Greater(t, metrics.PageLoadTime, 0.0)
}

func TestScrape_KeywordsDeterministic(t *testing.T) {
	t.Parallel()

	srv := newFixtureServer(t, true, true)
	s := newTestScraper()

	first, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	second, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	require.NotEmpty(t, first.Keywords)
	assert.LessOrEqual(t, len(first.Keywords), maxKeywords)
	assert.Equal(t, first.Keywords, second.Keywords)
	assert.Equal(t, first.OrganicTraffic, second.OrganicTraffic)

	for _, k := range first.Keywords {
		assert.Greater(t, len(k.Term), 3)
		assert.GreaterOrEqual(t, k.Position, 1)
		assert.LessOrEqual(t, k.Position, 20)
		assert.GreaterOrEqual(t, k.SearchVolume, 100)
	}
	assert.Equal(t, "widgets", first.Keywords[0].Term)
}

func TestScrape_MissingProbesAreSoft(t *testing.T) {
	t.Parallel()

	srv := newFixtureServer(t, false, false)
	s := newTestScraper()

	metrics, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, metrics.Raw.Technical.HasSitemap)
	assert.False(t, metrics.Raw.Technical.HasRobotsTxt)
}

func TestHeadCheck(t *testing.T) {
	t.Parallel()

	t.Run("alive", func(t *testing.T) {
		t.Parallel()
		srv := newFixtureServer(t, true, true)
		assert.NoError(t, newTestScraper().HeadCheck(context.Background(), srv.URL))
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		err := newTestScraper().HeadCheck(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		err := newTestScraper().HeadCheck(context.Background(), "http://127.0.0.1:1")
		assert.Error(t, err)
	})
}

func TestAuditPage_ScoresMissingBasics(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head></head><body></body></html>`))
	require.NoError(t, err)

	metrics := extractMetrics(doc, "https://bare.example", 0)
	assert.Equal(t, 70, metrics.SiteAuditScore)
	assert.Equal(t, 3, metrics.SiteAuditIssues)
	assert.False(t, metrics.MobileFriendly)
}
