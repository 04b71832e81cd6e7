package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryClient is an in-process Client. Queues live only as long as the
// client and are not shared between processes.
type MemoryClient struct {
	mu         sync.Mutex
	queues     map[string][][]byte
	wake       chan struct{}
	workers    map[string]int
	heartbeats map[string]time.Time
	closed     bool
}

// NewMemoryClient creates an empty in-memory queue.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		queues:     make(map[string][][]byte),
		wake:       make(chan struct{}),
		workers:    make(map[string]int),
		heartbeats: make(map[string]time.Time),
	}
}

// Push appends a copy of payload to queue and wakes waiting consumers.
func (c *MemoryClient) Push(_ context.Context, queue string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.queues[queue] = append(c.queues[queue], append([]byte(nil), payload...))
	close(c.wake)
	c.wake = make(chan struct{})
	return nil
}

// Pop removes the oldest payload, waiting up to timeout.
func (c *MemoryClient) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		if items := c.queues[queue]; len(items) > 0 {
			head := items[0]
			c.queues[queue] = items[1:]
			c.mu.Unlock()
			return head, nil
		}
		wake := c.wake
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wake:
		}
	}
}

// Len returns the number of pending payloads in queue.
func (c *MemoryClient) Len(queue string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[queue])
}

// Heartbeat records the time of the worker's last heartbeat.
func (c *MemoryClient) Heartbeat(_ context.Context, pool, workerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.heartbeats[healthKey(pool, workerID)] = time.Now()
	return nil
}

// Alive reports whether the worker sent a heartbeat within HeartbeatTTL.
func (c *MemoryClient) Alive(pool, workerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.heartbeats[healthKey(pool, workerID)]
	return ok && time.Since(at) < HeartbeatTTL
}

// WorkerCount returns the current worker count for a pool.
func (c *MemoryClient) WorkerCount(_ context.Context, pool string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workers[pool], nil
}

// IncrementWorkerCount increments the worker count for a pool.
func (c *MemoryClient) IncrementWorkerCount(_ context.Context, pool string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workers[pool]++
	return nil
}

// DecrementWorkerCount decrements the worker count for a pool.
func (c *MemoryClient) DecrementWorkerCount(_ context.Context, pool string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workers[pool]--
	return nil
}

// Close wakes blocked consumers; later calls fail with ErrClosed.
func (c *MemoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.wake)
	}
	return nil
}
