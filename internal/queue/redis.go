package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/celestiaorg/jobscheduler/internal/types"
)

// connectTimeout bounds the initial ping of a new client
const connectTimeout = 5 * time.Second

var _ Queue = (*RedisQueue)(nil)

// RedisQueue is a Queue backed by a redis list: RPUSH to enqueue, BLPOP to dequeue
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisClient parses a redis:// URL and verifies the server answers
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis connect error: %w", types.ErrTransport, err)
	}
	return client, nil
}

// NewRedisQueue creates a queue on the given list key. The queue takes
// ownership of the client and closes it in Close.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

// Key returns the redis list key
func (q *RedisQueue) Key() string {
	return q.key
}

// Enqueue appends id to the tail of the list
func (q *RedisQueue) Enqueue(ctx context.Context, id string) error {
	if err := q.client.RPush(ctx, q.key, id).Err(); err != nil {
		return fmt.Errorf("%w: failed to enqueue %s: %w", types.ErrTransport, id, err)
	}
	return nil
}

// blpopSlice is the wait of each BLPOP issued by Dequeue. Redis counts
// BLPOP timeouts in whole seconds and treats zero as forever.
const blpopSlice = time.Second

// Dequeue blocks for at most timeout, issuing BLPOP in slices of blpopSlice
// so a cancelled ctx is noticed within one slice. Timeouts are effectively
// rounded up to a whole second.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		res, err := q.client.BLPop(ctx, blpopSlice, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			if !time.Now().Before(deadline) {
				return "", false, nil
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			return "", false, fmt.Errorf("%w: failed to dequeue: %w", types.ErrTransport, err)
		}
		// BLPOP replies with [key, value]
		if len(res) != 2 {
			return "", false, fmt.Errorf("%w: unexpected BLPOP reply %v", types.ErrTransport, res)
		}
		return res[1], true, nil
	}
}

// Len returns the list length
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read queue length: %w", types.ErrTransport, err)
	}
	return n, nil
}

// Close closes the underlying client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
