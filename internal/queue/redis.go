package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisQueue implements Queue on Redis lists: LPUSH to publish, BRPOP to
// receive. Ordering is FIFO per queue name.
type RedisQueue struct {
	client         *redis.Client
	receiveTimeout time.Duration
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// ReceiveTimeout bounds each BRPOP call so Receive can observe context
	// cancellation. Defaults to 5s.
	ReceiveTimeout time.Duration
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, opts RedisOptions) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "queue: redis ping")
	}

	timeout := opts.ReceiveTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisQueue{client: client, receiveTimeout: timeout}, nil
}

func (q *RedisQueue) Publish(ctx context.Context, queue string, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "queue: marshal message")
	}
	if err := q.client.LPush(ctx, queue, payload).Err(); err != nil {
		return eris.Wrapf(err, "queue: publish to %s", queue)
	}
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, queue string) (*Message, error) {
	for {
		res, err := q.client.BRPop(ctx, q.receiveTimeout, queue).Result()
		if err == redis.Nil {
			// Timed out with nothing queued; loop unless cancelled.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, eris.Wrapf(err, "queue: receive from %s", queue)
		}

		// BRPop returns [key, value].
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return nil, eris.Wrapf(err, "queue: decode message from %s", queue)
		}
		return &msg, nil
	}
}

func (q *RedisQueue) Close() error {
	return eris.Wrap(q.client.Close(), "queue: close redis")
}
