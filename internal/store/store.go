// Package store provides durable persistence for tasks, reports, and
// pipeline artifacts.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/dawitel/optimetricsapi/internal/model"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrInvalidState is returned when a task is not in the state an operation
// requires (e.g. retrying a task that is not FAILED).
var ErrInvalidState = eris.New("store: invalid task state")

// TaskFilter specifies criteria for listing tasks.
type TaskFilter struct {
	Status   model.TaskStatus `json:"status,omitempty"`
	Type     model.TaskType   `json:"type,omitempty"`
	DomainID string           `json:"domain_id,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Store defines the persistence interface consumed by the pipeline engine,
// the API layer, and the workers. Every call is atomic on its own; nothing
// here spans a multi-row transaction.
type Store interface {
	// Domains
	GetDomain(ctx context.Context, id string) (*model.Domain, error)
	CreateDomain(ctx context.Context, d *model.Domain) error

	// Tasks
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// UpdateTaskStatus persists a status/stage transition. An empty stage
	// keeps the stored stage; lastErr is persisted only alongside FAILED and
	// cleared otherwise. processing_at is set on the first PROCESSING
	// transition, completed_at on COMPLETED.
	UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus, stage model.TaskStage, lastErr string) error
	// RetryTask moves a FAILED task back to PENDING, increments its retry
	// count, clears the last error, and resets the stage to the first stage
	// of the task's type. Returns ErrInvalidState unless the task is FAILED.
	RetryTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)

	// Reports and artifacts
	CreateReport(ctx context.Context, r *model.Report) error
	CreateSeoReport(ctx context.Context, r *model.SeoReport) error
	// UpsertKeyword deduplicates keywords per domain by term; on conflict
	// the metrics are refreshed and the existing row id is returned in k.ID.
	UpsertKeyword(ctx context.Context, k *model.Keyword) error
	CreateKeywordRanking(ctx context.Context, kr *model.KeywordRanking) error
	CreateReview(ctx context.Context, rv *model.Review) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
