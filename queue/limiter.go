package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window rate limiter kept in Redis, so every
// process sharing the Redis instance draws from the same budget.
type RedisLimiter struct {
	client *redis.Client
	key    string
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows limit calls per window under name.
func NewRedisLimiter(c *RedisClient, name string, limit int, window time.Duration) (*RedisLimiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}
	return &RedisLimiter{
		client: c.client,
		key:    formatKeyName("taskforge", "ratelimit", name),
		limit:  int64(limit),
		window: window,
	}, nil
}

// Wait blocks until a call is allowed in the current window or ctx is done.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	for {
		ok, retryIn, err := l.take(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(retryIn)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// takeScript increments the window counter and returns it with the window's
// remaining time. A new counter, or one left without expiry, starts a fresh
// window.
var takeScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if n == 1 or ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// take claims one slot. When the window is full it reports how long until
// the window resets.
func (l *RedisLimiter) take(ctx context.Context) (bool, time.Duration, error) {
	res, err := takeScript.Run(ctx, l.client, []string{l.key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to take rate limit slot %s: %w", l.key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit reply for %s: %v", l.key, res)
	}

	n, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if n <= l.limit {
		return true, 0, nil
	}
	if ttl <= 0 || ttl > l.window {
		ttl = l.window
	}
	return false, ttl, nil
}
