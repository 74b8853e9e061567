package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window request counter backed by Redis.
// Key format: ratelimit:<key>:<window_start_unix>
type Limiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewLimiter creates a Limiter wrapping the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client, now: time.Now}
}

// Allow increments the counter for key in the current window and reports
// whether it is still within limit.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := l.key(key, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}

func (l *Limiter) key(key string, window time.Duration) string {
	start := l.now().Truncate(window).Unix()
	return fmt.Sprintf("ratelimit:%s:%d", key, start)
}
