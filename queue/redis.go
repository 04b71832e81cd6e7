package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisClient implements Client on Redis lists.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis queue client with the given options.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Push adds a payload to the head of the list; Pop takes from the tail.
func (c *RedisClient) Push(ctx context.Context, queue string, payload []byte) error {
	if err := c.client.LPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", queue, err)
	}
	return nil
}

// Pop removes the oldest payload, blocking up to timeout.
func (c *RedisClient) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	// BRPOP returns [queue_name, value] or redis.Nil on timeout
	result, err := c.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", queue, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	return []byte(result[1]), nil
}

// Len returns the number of pending payloads in a queue.
func (c *RedisClient) Len(ctx context.Context, queue string) (int64, error) {
	n, err := c.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length of queue %s: %w", queue, err)
	}
	return n, nil
}

// Heartbeat sets the worker's health key with HeartbeatTTL.
func (c *RedisClient) Heartbeat(ctx context.Context, pool, workerID string) error {
	if err := c.client.Set(ctx, healthKey(pool, workerID), time.Now().UTC().Format(time.RFC3339), HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat for worker %s: %w", workerID, err)
	}
	return nil
}

// WorkerCount returns the current worker count for a pool.
func (c *RedisClient) WorkerCount(ctx context.Context, pool string) (int, error) {
	countStr, err := c.client.Get(ctx, workersKey(pool)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get worker count for pool %s: %w", pool, err)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return 0, fmt.Errorf("invalid worker count value: %w", err)
	}

	return count, nil
}

// IncrementWorkerCount increments the worker count for a pool.
func (c *RedisClient) IncrementWorkerCount(ctx context.Context, pool string) error {
	if err := c.client.Incr(ctx, workersKey(pool)).Err(); err != nil {
		return fmt.Errorf("failed to increment worker count for pool %s: %w", pool, err)
	}
	return nil
}

// DecrementWorkerCount decrements the worker count for a pool.
func (c *RedisClient) DecrementWorkerCount(ctx context.Context, pool string) error {
	if err := c.client.Decr(ctx, workersKey(pool)).Err(); err != nil {
		return fmt.Errorf("failed to decrement worker count for pool %s: %w", pool, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
