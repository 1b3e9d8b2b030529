package model

import (
	"encoding/json"
	"time"
)

// ReportType distinguishes the two report families.
type ReportType string

const (
	ReportTypeSeo    ReportType = "SEO"
	ReportTypeReview ReportType = "REVIEW"
)

// Report is the durable output of a completed pipeline run. Created once,
// before its child artifacts, and never mutated afterward.
type Report struct {
	ID        string     `json:"id"`
	Type      ReportType `json:"type"`
	Title     string     `json:"title"`
	DomainID  string     `json:"domain_id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// SeoReport holds the aggregate metrics of one SEO run.
type SeoReport struct {
	ID               string          `json:"id"`
	ReportID         string          `json:"report_id"`
	DomainID         string          `json:"domain_id"`
	UserID           string          `json:"user_id"`
	OrganicTraffic   int             `json:"organic_traffic"`
	OrganicKeywords  int             `json:"organic_keywords"`
	SiteAuditScore   int             `json:"site_audit_score"`
	SiteAuditIssues  int             `json:"site_audit_issues"`
	Backlinks        int             `json:"backlinks"`
	ReferringDomains int             `json:"referring_domains"`
	AuthorityScore   int             `json:"authority_score"`
	PageLoadTime     float64         `json:"page_load_time"`
	MobileFriendly   bool            `json:"mobile_friendly"`
	Data             json.RawMessage `json:"data,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Keyword is one discovered search term, deduplicated per domain.
type Keyword struct {
	ID           string    `json:"id"`
	DomainID     string    `json:"domain_id"`
	Term         string    `json:"term"`
	SearchVolume int       `json:"search_volume"`
	Efficiency   int       `json:"efficiency"`
	CreatedAt    time.Time `json:"created_at"`
}

// KeywordRanking is an append-only position observation for a keyword.
type KeywordRanking struct {
	ID          string    `json:"id"`
	KeywordID   string    `json:"keyword_id"`
	SeoReportID string    `json:"seo_report_id"`
	Position    int       `json:"position"`
	Region      string    `json:"region"`
	Date        time.Time `json:"date"`
}

// Review is one normalized, persisted customer review.
type Review struct {
	ID         string         `json:"id"`
	DomainID   string         `json:"domain_id"`
	ReportID   string         `json:"report_id"`
	Source     ReviewSource   `json:"source"`
	ExternalID string         `json:"external_id"`
	Rating     float64        `json:"rating"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	AuthorName string         `json:"author_name"`
	ReviewDate time.Time      `json:"review_date"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
