package worker

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dawitel/optimetricsapi/internal/model"
	"github.com/dawitel/optimetricsapi/internal/pipeline"
	"github.com/dawitel/optimetricsapi/internal/queue"
	"github.com/dawitel/optimetricsapi/internal/store"
)

// Processor turns queue messages into pipeline runs. The message is only a
// pointer: the task row is re-loaded and its own payload re-validated before
// anything runs, so a stale or duplicate delivery cannot double-run a task.
type Processor struct {
	store  store.Store
	engine *pipeline.Engine
	seo    pipeline.SeoDeps
	review pipeline.ReviewDeps
}

// NewProcessor wires a Processor from its pipeline dependencies. Engine
// options, such as a per-stage timeout, pass straight through.
func NewProcessor(st store.Store, seo pipeline.SeoDeps, review pipeline.ReviewDeps, opts ...pipeline.Option) *Processor {
	return &Processor{
		store:  st,
		engine: pipeline.NewEngine(st, opts...),
		seo:    seo,
		review: review,
	}
}

// ProcessSeo handles one seo-scrape message.
func (p *Processor) ProcessSeo(ctx context.Context, msg *queue.Message) error {
	task, ok, err := p.loadPending(ctx, msg)
	if err != nil || !ok {
		return err
	}

	payload, err := model.ParseSeoPayload(task.Payload)
	if err != nil {
		return p.rejectPayload(ctx, task, err)
	}

	return p.engine.Execute(ctx, task, pipeline.NewSeoPipeline(p.seo, payload, msg.UserID))
}

// ProcessReview handles one review-scrape message.
func (p *Processor) ProcessReview(ctx context.Context, msg *queue.Message) error {
	task, ok, err := p.loadPending(ctx, msg)
	if err != nil || !ok {
		return err
	}

	payload, err := model.ParseReviewPayload(task.Payload)
	if err != nil {
		return p.rejectPayload(ctx, task, err)
	}

	return p.engine.Execute(ctx, task, pipeline.NewReviewPipeline(p.review, payload, msg.UserID))
}

// loadPending fetches the task and reports whether it should run. A missing
// task or a non-PENDING status drops the message without error.
func (p *Processor) loadPending(ctx context.Context, msg *queue.Message) (*model.Task, bool, error) {
	log := zap.L().With(zap.String("task_id", msg.TaskID))

	task, err := p.store.GetTask(ctx, msg.TaskID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			log.Warn("worker: task not found, dropping message")
			return nil, false, nil
		}
		return nil, false, eris.Wrap(err, "worker: load task")
	}

	if task.Status != model.TaskStatusPending {
		log.Info("worker: task not pending, skipping",
			zap.String("status", string(task.Status)))
		return nil, false, nil
	}
	return task, true, nil
}

// rejectPayload marks a task with an undecodable payload as FAILED; this is
// a validation error, so the failure is terminal, not retried here.
func (p *Processor) rejectPayload(ctx context.Context, task *model.Task, cause error) error {
	if err := p.store.UpdateTaskStatus(ctx, task.ID, model.TaskStatusFailed, task.Stage, cause.Error()); err != nil {
		zap.L().Warn("worker: failed to mark invalid payload",
			zap.String("task_id", task.ID), zap.Error(err))
	}
	return eris.Wrapf(cause, "worker: invalid payload for task %s", task.ID)
}
