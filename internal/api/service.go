// Package api exposes the HTTP boundary: task submission, retry and status.
package api

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dawitel/optimetricsapi/internal/model"
	"github.com/dawitel/optimetricsapi/internal/queue"
	"github.com/dawitel/optimetricsapi/internal/store"
)

// Typed errors the handlers map to HTTP status codes.
var (
	ErrDomainNotFound = eris.New("api: domain not found")
	ErrTaskNotFound   = eris.New("api: task not found")
	ErrNotRetryable   = eris.New("api: task is not in a failed state")
	ErrCorruptPayload = eris.New("api: task payload is corrupt")
)

// Service implements the submission and retry flows over the store and the
// queue.
type Service struct {
	store      store.Store
	queue      queue.Queue
	maxRetries int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxRetries sets the retry budget recorded on new tasks.
func WithMaxRetries(n int) ServiceOption {
	return func(s *Service) { s.maxRetries = n }
}

// NewService creates a Service.
func NewService(st store.Store, q queue.Queue, opts ...ServiceOption) *Service {
	s := &Service{store: st, queue: q, maxRetries: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAnalysis looks up the domain and creates one SEO task and one review
// task, each published to its queue. The two creations are independent: a
// failure on the second leaves the first queued.
func (s *Service) StartAnalysis(ctx context.Context, domainID, userID string) ([]*model.Task, error) {
	domain, err := s.store.GetDomain(ctx, domainID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, eris.Wrap(err, "api: get domain")
	}

	seoTask, err := s.createAndPublish(ctx, domain, userID, model.TaskTypeSeoScrape)
	if err != nil {
		return nil, err
	}
	reviewTask, err := s.createAndPublish(ctx, domain, userID, model.TaskTypeReviewScrape)
	if err != nil {
		return nil, err
	}

	zap.L().Info("api: analysis started",
		zap.String("domain_id", domainID),
		zap.String("seo_task_id", seoTask.ID),
		zap.String("review_task_id", reviewTask.ID),
	)
	return []*model.Task{seoTask, reviewTask}, nil
}

func (s *Service) createAndPublish(ctx context.Context, domain *model.Domain, userID string, taskType model.TaskType) (*model.Task, error) {
	var payload any
	var queueName string
	var sources []model.ReviewSource

	switch taskType {
	case model.TaskTypeSeoScrape:
		payload = model.SeoPayload{URL: domain.URL}
		queueName = queue.QueueSeoScrape
	case model.TaskTypeReviewScrape:
		sources = model.DefaultReviewSources
		payload = model.ReviewPayload{URL: domain.URL, Sources: sources}
		queueName = queue.QueueReviewScrape
	default:
		return nil, eris.Errorf("api: unknown task type %q", taskType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "api: marshal payload")
	}

	task := &model.Task{
		Type:       taskType,
		DomainID:   domain.ID,
		Status:     model.TaskStatusPending,
		Stage:      model.FirstStage(taskType),
		Payload:    raw,
		Priority:   0,
		MaxRetries: s.maxRetries,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, eris.Wrapf(err, "api: create %s task", taskType)
	}

	msg := &queue.Message{
		TaskID:   task.ID,
		DomainID: domain.ID,
		URL:      domain.URL,
		UserID:   userID,
		Sources:  sources,
	}
	if err := s.queue.Publish(ctx, queueName, msg); err != nil {
		return nil, eris.Wrapf(err, "api: publish %s task", taskType)
	}
	return task, nil
}

// Retry transitions a FAILED task back to PENDING and republishes it with
// its original parameters.
func (s *Service) Retry(ctx context.Context, taskID, userID string) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, eris.Wrap(err, "api: get task")
	}
	if task.Status != model.TaskStatusFailed {
		return nil, ErrNotRetryable
	}

	// A payload that no longer decodes would fail again immediately; that
	// is data corruption, not a retryable state.
	if err := model.ValidatePayload(task.Type, task.Payload); err != nil {
		return nil, eris.Wrap(ErrCorruptPayload, err.Error())
	}

	task, err = s.store.RetryTask(ctx, taskID)
	if err != nil {
		if eris.Is(err, store.ErrInvalidState) {
			return nil, ErrNotRetryable
		}
		return nil, eris.Wrap(err, "api: retry task")
	}

	msg := &queue.Message{
		TaskID:   task.ID,
		DomainID: task.DomainID,
		URL:      payloadURL(task),
		UserID:   userID,
	}
	queueName := queue.QueueSeoScrape
	if task.Type == model.TaskTypeReviewScrape {
		queueName = queue.QueueReviewScrape
		if p, perr := model.ParseReviewPayload(task.Payload); perr == nil {
			msg.Sources = p.Sources
		}
	}
	if err := s.queue.Publish(ctx, queueName, msg); err != nil {
		return nil, eris.Wrap(err, "api: publish retry")
	}

	zap.L().Info("api: task retried",
		zap.String("task_id", task.ID),
		zap.Int("retry_count", task.RetryCount),
	)
	return task, nil
}

// GetTask returns the task row, the caller's window onto pipeline progress.
func (s *Service) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, eris.Wrap(err, "api: get task")
	}
	return task, nil
}

func payloadURL(task *model.Task) string {
	switch task.Type {
	case model.TaskTypeSeoScrape:
		if p, err := model.ParseSeoPayload(task.Payload); err == nil {
			return p.URL
		}
	case model.TaskTypeReviewScrape:
		if p, err := model.ParseReviewPayload(task.Payload); err == nil {
			return p.URL
		}
	}
	return ""
}
