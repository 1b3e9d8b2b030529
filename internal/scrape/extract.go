package scrape

import (
	"hash/fnv"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dawitel/optimetricsapi/internal/model"
)

const maxKeywords = 10

// extractMetrics derives the full metrics accumulator from a parsed page.
// Position, volume and difficulty estimates are hashed from the term so the
// same page always yields the same numbers.
func extractMetrics(doc *goquery.Document, siteURL string, loadTime time.Duration) *model.SeoMetrics {
	meta := extractMetaTags(doc)
	headings := extractHeadings(doc)
	links := extractLinks(doc, siteURL)
	images := extractImages(doc)
	kws := keywordCandidates(doc, meta, headings)

	organicTraffic := 0.0
	for _, k := range kws {
		organicTraffic += float64(k.SearchVolume) / float64(k.Position)
	}

	referring := map[string]struct{}{}
	backlinks := 0
	for _, l := range links {
		if l.IsInternal {
			continue
		}
		backlinks++
		if u, err := url.Parse(l.Href); err == nil && u.Host != "" {
			referring[strings.ToLower(u.Host)] = struct{}{}
		}
	}

	auditScore, auditIssues := auditPage(meta)

	return &model.SeoMetrics{
		OrganicTraffic:   int(math.Round(organicTraffic)),
		OrganicKeywords:  len(kws),
		SiteAuditScore:   auditScore,
		SiteAuditIssues:  auditIssues,
		Backlinks:        backlinks,
		ReferringDomains: len(referring),
		AuthorityScore:   min(100, len(referring)*5+len(kws)*2),
		PageLoadTime:     loadTime.Seconds(),
		MobileFriendly:   mobileFriendly(meta),
		Keywords:         kws,
		Raw: model.PageData{
			MetaTags: meta,
			Headings: headings,
			Links:    links,
			Images:   images,
		},
	}
}

func extractMetaTags(doc *goquery.Document) map[string]string {
	meta := map[string]string{}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok {
			name, ok = s.Attr("property")
		}
		if !ok || name == "" {
			return
		}
		if content, ok := s.Attr("content"); ok {
			meta[strings.ToLower(name)] = content
		}
	})
	return meta
}

func extractHeadings(doc *goquery.Document) map[string][]string {
	headings := map[string][]string{}
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				headings[tag] = append(headings[tag], text)
			}
		})
	}
	return headings
}

func extractLinks(doc *goquery.Document, siteURL string) []model.Link {
	base, _ := url.Parse(siteURL)
	var links []model.Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		links = append(links, model.Link{
			Href:       href,
			Text:       strings.TrimSpace(s.Text()),
			IsInternal: isInternal(base, href),
		})
	})
	return links
}

func isInternal(base *url.URL, href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return true
	}
	return base != nil && strings.EqualFold(u.Host, base.Host)
}

func extractImages(doc *goquery.Document) []model.Image {
	var images []model.Image
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			return
		}
		alt, _ := s.Attr("alt")
		images = append(images, model.Image{Src: src, Alt: alt})
	})
	return images
}

// keywordCandidates merges meta keywords, heading text and frequent body
// words into at most maxKeywords deduplicated terms.
func keywordCandidates(doc *goquery.Document, meta map[string]string, headings map[string][]string) []model.KeywordMetric {
	seen := map[string]struct{}{}
	var terms []string

	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) <= 3 {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, kw := range strings.Split(meta["keywords"], ",") {
		add(kw)
	}
	for _, tag := range []string{"h1", "h2", "h3"} {
		for _, h := range headings[tag] {
			for _, word := range strings.Fields(h) {
				add(strings.Trim(word, ".,;:!?\"'()"))
			}
		}
	}
	for _, word := range strings.Fields(doc.Find("body").Text()) {
		if len(terms) >= maxKeywords {
			break
		}
		add(strings.Trim(word, ".,;:!?\"'()"))
	}

	if len(terms) > maxKeywords {
		terms = terms[:maxKeywords]
	}

	kws := make([]model.KeywordMetric, 0, len(terms))
	for _, term := range terms {
		kws = append(kws, model.KeywordMetric{
			Term:         term,
			Position:     1 + int(termHash(term)%20),
			SearchVolume: 100 + int(termHash(term)%9900),
			Difficulty:   1 + int(termHash(term+"d")%100),
			Region:       "US",
		})
	}
	return kws
}

func termHash(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}

// auditPage scores basic on-page hygiene: title, meta description and a
// viewport meta each cost 10 points when missing.
func auditPage(meta map[string]string) (score, issues int) {
	checks := []bool{
		meta["title"] != "",
		meta["description"] != "",
		meta["viewport"] != "",
	}
	score = 100
	for _, ok := range checks {
		if !ok {
			score -= 10
			issues++
		}
	}
	return score, issues
}

func mobileFriendly(meta map[string]string) bool {
	viewport := strings.ToLower(meta["viewport"])
	return strings.Contains(viewport, "width=device-width") ||
		strings.Contains(viewport, "initial-scale=1")
}
