// Package ratelimit guards abuse-prone mutations with a durable fixed-window
// counter. Increments are atomic on the Redis side; two concurrent requests
// can never both slip under a limit meant to block the second one.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one limit check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Quota names a limit applied to one event type.
type Quota struct {
	Event  string
	Key    string
	Limit  int64
	Window time.Duration
}

// Limiter counts events in fixed windows backed by Redis.
type Limiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewLimiter constructs a Limiter.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client, now: time.Now}
}

// Allow consumes one attempt against the quota and reports whether it fits.
// The INCR and first-touch EXPIRE run in one pipeline so the counter is never
// read-then-written.
func (l *Limiter) Allow(ctx context.Context, q Quota) (Decision, error) {
	if q.Limit <= 0 || q.Window <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := l.now().UTC()
	bucket := now.Truncate(q.Window)
	key := fmt.Sprintf("ratelimit:%s:%s:%d", q.Event, q.Key, bucket.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, q.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr %s: %w", q.Event, err)
	}

	count := incr.Val()
	if count > q.Limit {
		retry := bucket.Add(q.Window).Sub(now)
		if retry <= 0 {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true, Remaining: q.Limit - count}, nil
}
