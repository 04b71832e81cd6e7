package taskforge

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/taskforge/metrics"
)

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used for task.submit spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *engineConfig) {
		c.tracer = tracer
	}
}

// WithMetrics records planning counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *engineConfig) {
		c.metrics = m
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) {
		c.now = now
	}
}
