package queue

import (
	"context"
	"sync"
)

// MemoryQueue implements Queue with in-process channels. Used by tests and
// the single-process analyze command where Redis would be a needless moving
// part.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string]chan *Message
	closed chan struct{}
	once   sync.Once
}

// NewMemory creates an in-memory queue. Each named queue buffers up to 256
// messages; Publish blocks on a full queue until space frees up, the queue
// closes, or the context is cancelled.
func NewMemory() *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[string]chan *Message),
		closed: make(chan struct{}),
	}
}

func (q *MemoryQueue) channel(queue string) chan *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.queues[queue]
	if !ok {
		ch = make(chan *Message, 256)
		q.queues[queue] = ch
	}
	return ch
}

func (q *MemoryQueue) Publish(ctx context.Context, queue string, msg *Message) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	select {
	case q.channel(queue) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Receive(ctx context.Context, queue string) (*Message, error) {
	select {
	case msg := <-q.channel(queue):
		return msg, nil
	case <-q.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
