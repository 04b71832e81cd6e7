package tracing

import (
	"context"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by taskforge packages.
const InstrumentationName = "github.com/zero-day-ai/taskforge"

// NewTracerProvider creates a TracerProvider for service that exports every
// finished span through exporter. A nil exporter logs spans with logger.
//
// Spans are exported synchronously as they end.
func NewTracerProvider(service string, exporter sdktrace.SpanExporter, logger *slog.Logger) *sdktrace.TracerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = NewLogExporter(logger)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
		),
	)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
}

// ParentContext returns ctx with a remote parent span built from hex-encoded
// traceID and spanID. Empty or malformed IDs leave ctx unchanged.
func ParentContext(ctx context.Context, traceID, spanID string) context.Context {
	if traceID == "" || spanID == "" {
		return ctx
	}

	traceIDBytes, err := hex.DecodeString(traceID)
	if err != nil || len(traceIDBytes) != 16 {
		return ctx
	}
	spanIDBytes, err := hex.DecodeString(spanID)
	if err != nil || len(spanIDBytes) != 8 {
		return ctx
	}

	var tid trace.TraceID
	copy(tid[:], traceIDBytes)
	var sid trace.SpanID
	copy(sid[:], spanIDBytes)

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithSpanContext(ctx, parent)
}

// IDs returns the hex trace and span IDs of the span in ctx, or two empty
// strings when ctx carries no valid span.
func IDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
