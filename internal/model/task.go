package model

import (
	"encoding/json"
	"time"
)

// TaskType identifies which pipeline a task runs.
type TaskType string

const (
	TaskTypeSeoScrape    TaskType = "SEO_SCRAPE"
	TaskTypeReviewScrape TaskType = "REVIEW_SCRAPE"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// TaskStage is a named step in a task type's fixed ordered sequence.
type TaskStage string

const (
	StageSiteFinding   TaskStage = "SITE_FINDING"
	StageTLSSSLChecks  TaskStage = "TLS_SSL_CHECKS"
	StageConfigLoading TaskStage = "CONFIGURATION_LOADING"
	StageScraping      TaskStage = "SCRAPING"
	StageAIAnalysis    TaskStage = "AI_ANALYSIS"
	StageReportGen     TaskStage = "REPORT_GENERATION"

	StageSourceIdentification TaskStage = "SOURCE_IDENTIFICATION"
	StageScrapingTrustpilot   TaskStage = "SCRAPING_TRUSTPILOT"
	StageScrapingGoogle       TaskStage = "SCRAPING_GOOGLE"
	StageNormalization        TaskStage = "NORMALIZATION"
	StageAISentiment          TaskStage = "AI_SENTIMENT_ANALYSIS"
	StageReviewReportGen      TaskStage = "REVIEW_REPORT_GENERATION"
)

var seoStages = []TaskStage{
	StageSiteFinding,
	StageTLSSSLChecks,
	StageConfigLoading,
	StageScraping,
	StageAIAnalysis,
	StageReportGen,
}

var reviewStages = []TaskStage{
	StageSourceIdentification,
	StageScrapingTrustpilot,
	StageScrapingGoogle,
	StageNormalization,
	StageAISentiment,
	StageReviewReportGen,
}

// StagesFor returns the ordered stage sequence for a task type.
func StagesFor(t TaskType) []TaskStage {
	switch t {
	case TaskTypeSeoScrape:
		return seoStages
	case TaskTypeReviewScrape:
		return reviewStages
	default:
		return nil
	}
}

// FirstStage returns the initial stage for a task type.
func FirstStage(t TaskType) TaskStage {
	stages := StagesFor(t)
	if len(stages) == 0 {
		return ""
	}
	return stages[0]
}

// Task is one pipeline run for a domain, tracked through stages to
// completion or failure. Mutated only by the engine (status/stage/error/
// timestamps) and the retry flow (status/retryCount/stage reset).
type Task struct {
	ID           string          `json:"id"`
	Type         TaskType        `json:"type"`
	DomainID     string          `json:"domain_id"`
	Status       TaskStatus      `json:"status"`
	Stage        TaskStage       `json:"stage"`
	Payload      json.RawMessage `json:"payload"`
	Priority     int             `json:"priority"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ProcessingAt *time.Time      `json:"processing_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Domain is an analyzed website. Domains are referenced by tasks but not
// owned by them.
type Domain struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ProjectID string    `json:"project_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
