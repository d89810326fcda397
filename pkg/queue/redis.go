package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotConnected is returned by Enqueue before Start succeeded.
var ErrNotConnected = errors.New("queue: not connected")

// RedisPublisher pushes payloads onto a Redis list used as a named queue.
// Consumers pop from the right (BRPOP), so LPUSH keeps FIFO order.
type RedisPublisher struct {
	client  *redis.Client
	key     string
	maxLen  int64
	mu      sync.RWMutex
	running bool
}

// RedisPublisherOption configures RedisPublisher.
type RedisPublisherOption func(*RedisPublisher)

// WithMaxLen caps the list length; 0 leaves it unbounded.
func WithMaxLen(n int64) RedisPublisherOption {
	return func(r *RedisPublisher) {
		if n > 0 {
			r.maxLen = n
		}
	}
}

// NewRedisPublisher creates a publisher for key on client.
func NewRedisPublisher(client *redis.Client, key string, opts ...RedisPublisherOption) *RedisPublisher {
	r := &RedisPublisher{client: client, key: key}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the list key.
func (r *RedisPublisher) Key() string { return r.key }

// Start checks the server is reachable.
func (r *RedisPublisher) Start(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pctx).Err(); err != nil {
		r.setRunning(false)
		return fmt.Errorf("redis ping: %w", err)
	}
	r.setRunning(true)
	return nil
}

// Enqueue pushes one payload.
func (r *RedisPublisher) Enqueue(ctx context.Context, payload []byte) error {
	r.mu.RLock()
	running := r.running
	r.mu.RUnlock()
	if !running {
		return ErrNotConnected
	}

	if r.maxLen == 0 {
		if err := r.client.LPush(ctx, r.key, payload).Err(); err != nil {
			return fmt.Errorf("lpush: %w", err)
		}
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, payload)
	pipe.LTrim(ctx, r.key, 0, r.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Stop marks the publisher as stopped and closes the client.
func (r *RedisPublisher) Stop() error {
	r.setRunning(false)
	return r.client.Close()
}

func (r *RedisPublisher) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}
