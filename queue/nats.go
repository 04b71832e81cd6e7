package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSOptions configures the JetStream backed queue.
type NATSOptions struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string

	// Stream is the JetStream stream holding every queue as a subject
	Stream string

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// MaxAge drops messages nobody consumed within this duration. Zero keeps them.
	MaxAge time.Duration
}

// NATSClient implements Client on a JetStream stream with work-queue
// retention. Each queue is a subject consumed through a durable pull
// consumer shared by every worker. Heartbeats live in a key-value bucket
// with a TTL, worker counters in one without.
type NATSClient struct {
	nc       *nats.Conn
	js       nats.JetStreamContext
	health   nats.KeyValue
	counters nats.KeyValue
	stream   string

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NewNATSClient connects and creates the stream and bucket if missing.
func NewNATSClient(opts NATSOptions) (*NATSClient, error) {
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	if opts.Stream == "" {
		opts.Stream = "TASKFORGE"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	nc, err := nats.Connect(opts.URL, nats.Name("taskforge"), nats.Timeout(opts.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(opts.Stream); errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      opts.Stream,
			Subjects:  []string{opts.Stream + ".>"},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
			MaxAge:    opts.MaxAge,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", opts.Stream, err)
		}
	} else if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to look up stream %s: %w", opts.Stream, err)
	}

	health, err := keyValue(js, opts.Stream+"_health", HeartbeatTTL)
	if err != nil {
		nc.Close()
		return nil, err
	}
	counters, err := keyValue(js, opts.Stream+"_workers", 0)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSClient{
		nc:       nc,
		js:       js,
		health:   health,
		counters: counters,
		stream:   opts.Stream,
		subs:     make(map[string]*nats.Subscription),
	}, nil
}

func keyValue(js nats.JetStreamContext, bucket string, ttl time.Duration) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket, TTL: ttl})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func (c *NATSClient) subject(queue string) string {
	return c.stream + "." + queue
}

// durableName turns a queue name into a valid consumer name.
func durableName(queue string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(queue)
}

// Push publishes payload and waits for the stream acknowledgement.
func (c *NATSClient) Push(ctx context.Context, queue string, payload []byte) error {
	if _, err := c.js.Publish(c.subject(queue), payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", queue, err)
	}
	return nil
}

func (c *NATSClient) subscription(queue string) (*nats.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[queue]; ok {
		return sub, nil
	}
	sub, err := c.js.PullSubscribe(c.subject(queue), durableName(queue), nats.BindStream(c.stream))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to queue %s: %w", queue, err)
	}
	c.subs[queue] = sub
	return sub, nil
}

// Pop fetches one message and acknowledges it before returning.
func (c *NATSClient) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	sub, err := c.subscription(queue)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs, err := sub.Fetch(1, nats.Context(fetchCtx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", queue, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	msg := msgs[0]
	if err := msg.Ack(); err != nil {
		return nil, fmt.Errorf("failed to ack message from queue %s: %w", queue, err)
	}
	return msg.Data, nil
}

// Heartbeat writes the worker's health key; the bucket TTL expires it.
func (c *NATSClient) Heartbeat(_ context.Context, pool, workerID string) error {
	key := strings.ReplaceAll(healthKey(pool, workerID), ":", ".")
	if _, err := c.health.PutString(key, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to set heartbeat for worker %s: %w", workerID, err)
	}
	return nil
}

func (c *NATSClient) counterKey(pool string) string {
	return strings.ReplaceAll(workersKey(pool), ":", ".")
}

// WorkerCount returns the current worker count for a pool.
func (c *NATSClient) WorkerCount(_ context.Context, pool string) (int, error) {
	entry, err := c.counters.Get(c.counterKey(pool))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get worker count for pool %s: %w", pool, err)
	}
	n, err := strconv.Atoi(string(entry.Value()))
	if err != nil {
		return 0, fmt.Errorf("invalid worker count value: %w", err)
	}
	return n, nil
}

// IncrementWorkerCount increments the worker count for a pool.
func (c *NATSClient) IncrementWorkerCount(ctx context.Context, pool string) error {
	return c.addWorkers(ctx, pool, 1)
}

// DecrementWorkerCount decrements the worker count for a pool.
func (c *NATSClient) DecrementWorkerCount(ctx context.Context, pool string) error {
	return c.addWorkers(ctx, pool, -1)
}

// addWorkers applies delta with compare-and-set, retrying on conflicts.
func (c *NATSClient) addWorkers(ctx context.Context, pool string, delta int) error {
	key := c.counterKey(pool)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := c.counters.Get(key)
		switch {
		case errors.Is(err, nats.ErrKeyNotFound):
			if _, err := c.counters.Create(key, []byte(strconv.Itoa(delta))); err == nil {
				return nil
			}
			continue
		case err != nil:
			return fmt.Errorf("failed to read worker count for pool %s: %w", pool, err)
		}

		n, err := strconv.Atoi(string(entry.Value()))
		if err != nil {
			return fmt.Errorf("invalid worker count value: %w", err)
		}
		if _, err := c.counters.Update(key, []byte(strconv.Itoa(n+delta)), entry.Revision()); err == nil {
			return nil
		}
	}
}

// Close closes the connection. Durable consumers stay on the server for
// the other workers.
func (c *NATSClient) Close() error {
	c.nc.Close()
	return nil
}
