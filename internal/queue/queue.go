// Package queue implements the Redis-backed refresh job queue. Jobs are
// pushed onto a list and consumed by worker pools; a short-lived SETNX
// lock per profile keeps concurrent workers from refreshing the same
// profile twice.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gramvault/gramvault/internal/pkg/metrics"
)

// Job is a single refresh request waiting on the queue.
type Job struct {
	ProfileID  string    `json:"profile_id"`
	Force      bool      `json:"force"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ErrEmpty is returned by Dequeue when no job arrived within the wait window.
var ErrEmpty = errors.New("queue: no job available")

// RedisQueue stores jobs on a Redis list (LPUSH producer, BRPOP consumer).
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ProfileID == "" {
		return errors.New("queue: job requires a profile id")
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	if depth, err := q.client.LLen(ctx, q.key).Result(); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
	return nil
}

// Dequeue blocks up to wait for the next job. ErrEmpty means the window
// elapsed without work; callers loop on it.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("queue: unexpected BRPOP reply of %d elements", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("queue: decode job: %w", err)
	}
	if depth, err := q.client.LLen(ctx, q.key).Result(); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
	return &job, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// RedisLocker hands out per-profile refresh locks via SETNX with a TTL, so
// a crashed worker cannot hold a profile forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, profileID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.lockKey(profileID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("queue: acquire lock: %w", err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, profileID string) error {
	if err := l.client.Del(ctx, l.lockKey(profileID)).Err(); err != nil {
		return fmt.Errorf("queue: release lock: %w", err)
	}
	return nil
}

func (l *RedisLocker) lockKey(profileID string) string {
	return "gramvault:refresh:lock:" + profileID
}
