// Package pipeline runs the staged SEO and review analysis flows. Each flow
// is an ordered list of named stages; the engine persists the task's status
// and current stage around every stage so an operator can see exactly where
// a run is, and where it died.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dawitel/optimetricsapi/internal/model"
	"github.com/dawitel/optimetricsapi/internal/store"
)

// Run accumulates partial results as a task moves through its stages. Each
// stage reads what earlier stages wrote; none of it is persisted until the
// report stage.
type Run struct {
	Task *model.Task

	// SEO flow.
	Metrics  *model.SeoMetrics
	Analysis json.RawMessage

	// Review flow.
	RawReviews []model.RawReview
	Sentiments []model.Sentiment
}

// Stage is one named step of a pipeline run.
type Stage struct {
	Name model.TaskStage
	Run  func(ctx context.Context, run *Run) error
}

// Pipeline is an ordered sequence of stages for one task type.
type Pipeline struct {
	Type   model.TaskType
	Stages []Stage
}

// Engine executes pipelines, recording every transition in the store. A
// failed stage halts the run; the task carries the failing stage's name and
// error message, and recovery happens through the retry operation rather
// than inside the engine.
type Engine struct {
	store        store.Store
	stageTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithStageTimeout bounds each stage's execution. Zero means no limit.
func WithStageTimeout(d time.Duration) Option {
	return func(e *Engine) { e.stageTimeout = d }
}

// NewEngine creates an Engine persisting to the given store.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{store: st}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the pipeline's stages in order for the given task. The task
// is marked PROCESSING at each stage boundary, FAILED with the failing
// stage on the first error, and COMPLETED after the last stage.
func (e *Engine) Execute(ctx context.Context, task *model.Task, p *Pipeline) error {
	log := zap.L().With(zap.String("task_id", task.ID), zap.String("type", string(p.Type)))
	log.Info("pipeline: starting run", zap.Int("stages", len(p.Stages)))

	run := &Run{Task: task}
	start := time.Now()
	for _, stage := range p.Stages {
		if err := e.store.UpdateTaskStatus(ctx, task.ID, model.TaskStatusProcessing, stage.Name, ""); err != nil {
			return eris.Wrapf(err, "pipeline: mark stage %s", stage.Name)
		}

		stageCtx := ctx
		cancel := context.CancelFunc(func() {})
		if e.stageTimeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, e.stageTimeout)
		}
		stageStart := time.Now()
		err := stage.Run(stageCtx, run)
		cancel()
		if err != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage.Name)),
				zap.Duration("stage_duration", time.Since(stageStart)),
				zap.Error(err),
			)
			if statusErr := e.store.UpdateTaskStatus(ctx, task.ID, model.TaskStatusFailed, stage.Name, err.Error()); statusErr != nil {
				log.Warn("pipeline: failed to record failure", zap.Error(statusErr))
			}
			return eris.Wrapf(err, "pipeline: stage %s", stage.Name)
		}

		// Idempotent checkpoint so the row always reflects the last
		// stage that finished, even if the process dies between stages.
		if err := e.store.UpdateTaskStatus(ctx, task.ID, model.TaskStatusProcessing, stage.Name, ""); err != nil {
			return eris.Wrapf(err, "pipeline: checkpoint stage %s", stage.Name)
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", string(stage.Name)),
			zap.Duration("stage_duration", time.Since(stageStart)),
		)
	}

	// Empty stage keeps the last stage name on the completed row.
	if err := e.store.UpdateTaskStatus(ctx, task.ID, model.TaskStatusCompleted, "", ""); err != nil {
		return eris.Wrap(err, "pipeline: mark completed")
	}
	log.Info("pipeline: run complete", zap.Duration("duration", time.Since(start)))
	return nil
}
