package model

import "encoding/json"

// KeywordMetric is one keyword candidate discovered during site scraping.
type KeywordMetric struct {
	Term         string `json:"term"`
	Position     int    `json:"position"`
	SearchVolume int    `json:"search_volume"`
	Difficulty   int    `json:"difficulty"`
	Region       string `json:"region"`
}

// Link is one anchor extracted from the analyzed page.
type Link struct {
	Href       string `json:"href"`
	Text       string `json:"text"`
	IsInternal bool   `json:"is_internal"`
}

// Image is one image extracted from the analyzed page.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// TechnicalSignals holds infrastructure-level findings for a site.
type TechnicalSignals struct {
	HasSSL         bool  `json:"has_ssl"`
	HasSitemap     bool  `json:"has_sitemap"`
	HasRobotsTxt   bool  `json:"has_robots_txt"`
	ResponseTimeMS int64 `json:"response_time_ms"`
}

// PageData is the raw extracted page content carried in the SEO accumulator
// and persisted on the SeoReport.
type PageData struct {
	MetaTags   map[string]string   `json:"meta_tags"`
	Headings   map[string][]string `json:"headings"`
	Links      []Link              `json:"links"`
	Images     []Image             `json:"images"`
	Technical  TechnicalSignals    `json:"technical"`
	AIAnalysis json.RawMessage     `json:"ai_analysis,omitempty"`
}

// SeoMetrics is the accumulator produced by the SCRAPING stage and consumed
// by AI_ANALYSIS and REPORT_GENERATION.
type SeoMetrics struct {
	OrganicTraffic   int             `json:"organic_traffic"`
	OrganicKeywords  int             `json:"organic_keywords"`
	SiteAuditScore   int             `json:"site_audit_score"`
	SiteAuditIssues  int             `json:"site_audit_issues"`
	Backlinks        int             `json:"backlinks"`
	ReferringDomains int             `json:"referring_domains"`
	AuthorityScore   int             `json:"authority_score"`
	PageLoadTime     float64         `json:"page_load_time"`
	MobileFriendly   bool            `json:"mobile_friendly"`
	Keywords         []KeywordMetric `json:"keywords"`
	Raw              PageData        `json:"raw"`
}
