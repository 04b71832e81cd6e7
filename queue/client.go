package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Client is a durable FIFO work queue with worker bookkeeping.
type Client interface {
	// Push appends a payload to a queue. It does not wait for a consumer.
	Push(ctx context.Context, queue string, payload []byte) error

	// Pop removes the oldest payload from a queue, waiting up to timeout.
	// It returns nil, nil when nothing arrived in time.
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)

	// Heartbeat refreshes the liveness key of a worker for HeartbeatTTL.
	Heartbeat(ctx context.Context, pool, workerID string) error

	// WorkerCount returns the number of registered workers in a pool.
	WorkerCount(ctx context.Context, pool string) (int, error)

	// IncrementWorkerCount registers a worker in a pool.
	IncrementWorkerCount(ctx context.Context, pool string) error

	// DecrementWorkerCount deregisters a worker from a pool.
	DecrementWorkerCount(ctx context.Context, pool string) error

	// Close releases the underlying connection.
	Close() error
}

// PushJSON encodes msg and pushes it onto queue.
func PushJSON[T any](ctx context.Context, c Client, queue string, msg T) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", queue, err)
	}
	return c.Push(ctx, queue, data)
}

// PopJSON pops and decodes one message. It returns nil, nil on timeout.
func PopJSON[T any](ctx context.Context, c Client, queue string, timeout time.Duration) (*T, error) {
	data, err := c.Pop(ctx, queue, timeout)
	if err != nil || data == nil {
		return nil, err
	}
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message from %s: %w", queue, err)
	}
	return &msg, nil
}

// formatKeyName joins key parts with ':'.
func formatKeyName(parts ...string) string {
	return strings.Join(parts, ":")
}

func healthKey(pool, workerID string) string {
	return formatKeyName("taskforge", pool, "worker", workerID, "health")
}

func workersKey(pool string) string {
	return formatKeyName("taskforge", pool, "workers")
}
