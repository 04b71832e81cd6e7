package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/taskforge/metrics"
	"github.com/zero-day-ai/taskforge/queue"
	"github.com/zero-day-ai/taskforge/tracing"
)

// Pool names used for worker bookkeeping and metrics.
const (
	PoolExecutions = "executions"
	PoolFindings   = "findings"
)

// Default option values.
const (
	DefaultConcurrency       = 4
	DefaultPopTimeout        = 5 * time.Second
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
)

// popErrorBackoff is the pause after a failed Pop before trying again.
const popErrorBackoff = time.Second

// Options configures a pool. Zero values select the defaults.
type Options struct {
	// Concurrency is the number of consumer goroutines.
	Concurrency int

	// PopTimeout bounds each blocking Pop so loops notice shutdown.
	PopTimeout time.Duration

	// HeartbeatInterval is how often the pool refreshes its heartbeat.
	HeartbeatInterval time.Duration

	// ShutdownTimeout is how long in-flight items may run after the pool's
	// context is cancelled.
	ShutdownTimeout time.Duration

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = DefaultPopTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracing.InstrumentationName + "/worker")
	}
	return o
}

// handler processes one popped payload.
type handler func(ctx context.Context, logger *slog.Logger, payload []byte)

// consumer is the queue loop shared by both pools.
type consumer struct {
	pool     string
	queue    string
	client   queue.Client
	opts     Options
	workerID string
	logger   *slog.Logger
}

func newConsumer(pool, queueName string, client queue.Client, opts Options) consumer {
	workerID := generateWorkerID()
	return consumer{
		pool:     pool,
		queue:    queueName,
		client:   client,
		opts:     opts,
		workerID: workerID,
		logger:   opts.Logger.With("pool", pool, "worker_id", workerID),
	}
}

// run starts Concurrency loops and blocks until they have all stopped.
func (c consumer) run(ctx context.Context, handle handler) error {
	c.logger.Info("worker pool starting",
		"queue", c.queue,
		"concurrency", c.opts.Concurrency,
	)

	if err := c.client.IncrementWorkerCount(ctx, c.pool); err != nil {
		c.logger.Error("failed to increment worker count", "error", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.client.DecrementWorkerCount(cleanupCtx, c.pool); err != nil && !errors.Is(err, queue.ErrClosed) {
			c.logger.Error("failed to decrement worker count", "error", err)
		}
	}()

	// In-flight items outlive ctx by at most ShutdownTimeout.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	stopDrain := context.AfterFunc(ctx, func() {
		time.AfterFunc(c.opts.ShutdownTimeout, cancelWork)
	})
	defer stopDrain()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		c.heartbeat(hbCtx)
	}()

	var g errgroup.Group
	for i := 0; i < c.opts.Concurrency; i++ {
		workerNum := i
		g.Go(func() error {
			c.loop(ctx, workCtx, workerNum, handle)
			return nil
		})
	}
	err := g.Wait()
	stopHeartbeat()
	<-hbDone
	c.logger.Info("worker pool stopped")
	return err
}

// loop pops and handles payloads until ctx is done or the queue closes.
func (c consumer) loop(ctx, workCtx context.Context, workerNum int, handle handler) {
	logger := c.logger.With("worker_num", workerNum)
	c.opts.Metrics.WorkerStarted(c.pool)
	defer c.opts.Metrics.WorkerStopped(c.pool)
	logger.Debug("worker loop started", "queue", c.queue)

	for {
		if ctx.Err() != nil {
			logger.Debug("worker loop stopped", "reason", "context_cancelled")
			return
		}

		payload, err := c.client.Pop(ctx, c.queue, c.opts.PopTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				logger.Debug("worker loop stopped", "reason", "queue_closed")
				return
			}
			logger.Error("failed to pop message", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(popErrorBackoff):
			}
			continue
		}
		if payload == nil {
			continue
		}

		handle(workCtx, logger, payload)
	}
}

// heartbeat refreshes the pool's liveness key until ctx is done.
func (c consumer) heartbeat(ctx context.Context) {
	beat := func() {
		if err := c.client.Heartbeat(ctx, c.pool, c.workerID); err != nil && ctx.Err() == nil {
			c.logger.Debug("heartbeat failed", "error", err)
		}
	}
	beat()

	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

// generateWorkerID returns hostname-pid-shortuuid.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
}
