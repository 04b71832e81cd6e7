package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans as structured log records at debug
// level, or at warn level when the span ended with an error status.
type LogExporter struct {
	logger *slog.Logger
}

// NewLogExporter creates a LogExporter. A nil logger uses slog.Default.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

// ExportSpans logs each span. It never fails.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		level := slog.LevelDebug
		if span.Status().Code == codes.Error {
			level = slog.LevelWarn
		}
		e.logger.LogAttrs(ctx, level, "span", spanAttrs(span)...)
	}
	return nil
}

// Shutdown is a no-op.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}

func spanAttrs(span sdktrace.ReadOnlySpan) []slog.Attr {
	sc := span.SpanContext()
	attrs := []slog.Attr{
		slog.String("name", span.Name()),
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
		slog.Duration("duration", span.EndTime().Sub(span.StartTime())),
	}
	if parent := span.Parent(); parent.IsValid() {
		attrs = append(attrs, slog.String("parent_span_id", parent.SpanID().String()))
	}
	if st := span.Status(); st.Code != codes.Unset {
		attrs = append(attrs, slog.String("status", st.Code.String()))
		if st.Description != "" {
			attrs = append(attrs, slog.String("status_message", st.Description))
		}
	}
	if kvs := span.Attributes(); len(kvs) > 0 {
		group := make([]any, 0, len(kvs))
		for _, kv := range kvs {
			group = append(group, attributeToSlog(kv))
		}
		attrs = append(attrs, slog.Group("attributes", group...))
	}
	return attrs
}

func attributeToSlog(kv attribute.KeyValue) slog.Attr {
	key := string(kv.Key)
	switch kv.Value.Type() {
	case attribute.BOOL:
		return slog.Bool(key, kv.Value.AsBool())
	case attribute.INT64:
		return slog.Int64(key, kv.Value.AsInt64())
	case attribute.FLOAT64:
		return slog.Float64(key, kv.Value.AsFloat64())
	default:
		// Slices are rendered in their string form.
		return slog.String(key, kv.Value.Emit())
	}
}
