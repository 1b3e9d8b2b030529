// Package worker consumes queued task messages and drives the pipelines.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dawitel/optimetricsapi/internal/queue"
)

// Handler processes one queue message end to end.
type Handler func(ctx context.Context, msg *queue.Message) error

// Worker consumes one named queue with bounded concurrency. Handler errors
// are logged, not fatal: the task row already records the failure and the
// external retry flow owns recovery.
type Worker struct {
	name        string
	queue       queue.Queue
	queueName   string
	concurrency int
	handle      Handler
}

// New creates a Worker. Concurrency below 1 is coerced to 1.
func New(name string, q queue.Queue, queueName string, concurrency int, handle Handler) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		name:        name,
		queue:       q,
		queueName:   queueName,
		concurrency: concurrency,
		handle:      handle,
	}
}

// Run consumes messages until the context is cancelled or the queue closes.
// In-flight handlers finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("worker", w.name), zap.String("queue", w.queueName))
	log.Info("worker: starting", zap.Int("concurrency", w.concurrency))

	g := &errgroup.Group{}
	g.SetLimit(w.concurrency)

	for {
		msg, err := w.queue.Receive(ctx, w.queueName)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrClosed) {
				break
			}
			log.Error("worker: receive failed", zap.Error(err))
			continue
		}

		g.Go(func() error {
			if handleErr := w.handle(ctx, msg); handleErr != nil {
				log.Error("worker: task failed",
					zap.String("task_id", msg.TaskID),
					zap.Error(handleErr),
				)
			}
			return nil
		})
	}

	err := g.Wait()
	log.Info("worker: stopped")
	return err
}
