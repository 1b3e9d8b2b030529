// Package queue provides the transport that hands submitted tasks to workers.
// The queue carries only pointers (task ids plus enough context to log by);
// the task row in the store remains the source of truth for state.
package queue

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/dawitel/optimetricsapi/internal/model"
)

// Queue names, one per task type.
const (
	QueueSeoScrape    = "seo-scrape"
	QueueReviewScrape = "review-scrape"
)

// ErrClosed is returned by Receive after Close.
var ErrClosed = eris.New("queue: closed")

// Message is the wire envelope published per task.
type Message struct {
	TaskID   string               `json:"task_id"`
	DomainID string               `json:"domain_id"`
	URL      string               `json:"url"`
	UserID   string               `json:"user_id"`
	Sources  []model.ReviewSource `json:"sources,omitempty"`
}

// Queue is a named FIFO message transport. Receive blocks until a message
// arrives, the context is cancelled, or the queue is closed.
type Queue interface {
	Publish(ctx context.Context, queue string, msg *Message) error
	Receive(ctx context.Context, queue string) (*Message, error)
	Close() error
}
