package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

const (
	testTraceID = "0123456789abcdef0123456789abcdef"
	testSpanID  = "0123456789abcdef"
)

func TestParentContext(t *testing.T) {
	tests := []struct {
		name        string
		traceID     string
		spanID      string
		expectValid bool
	}{
		{"valid IDs", testTraceID, testSpanID, true},
		{"empty trace ID", "", testSpanID, false},
		{"empty span ID", testTraceID, "", false},
		{"invalid hex", "not-hex", testSpanID, false},
		{"short trace ID", "0123", testSpanID, false},
		{"short span ID", testTraceID, "01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ParentContext(context.Background(), tt.traceID, tt.spanID)
			sc := trace.SpanContextFromContext(ctx)
			assert.Equal(t, tt.expectValid, sc.IsValid())
			if tt.expectValid {
				assert.True(t, sc.IsRemote())
				assert.True(t, sc.IsSampled())
				assert.Equal(t, testTraceID, sc.TraceID().String())
			}
		})
	}
}

func TestIDs_RoundTripThroughParentContext(t *testing.T) {
	traceID, spanID := IDs(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)

	ctx := ParentContext(context.Background(), testTraceID, testSpanID)
	traceID, spanID = IDs(ctx)
	assert.Equal(t, testTraceID, traceID)
	assert.Equal(t, testSpanID, spanID)
}

func TestNewTracerProvider_ChildJoinsRemoteParent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := NewTracerProvider("taskforge-test", exporter, nil)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx := ParentContext(context.Background(), testTraceID, testSpanID)
	_, span := tp.Tracer(InstrumentationName).Start(ctx, "execution.run")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "execution.run", spans[0].Name)
	assert.Equal(t, testTraceID, spans[0].SpanContext.TraceID().String())
	assert.Equal(t, testSpanID, spans[0].Parent.SpanID().String())
}

func TestLogExporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tp := NewTracerProvider("taskforge-test", nil, logger)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer(InstrumentationName).Start(context.Background(), "nvd.lookup")
	span.SetAttributes(
		attribute.String("cve", "CVE-2021-44228"),
		attribute.Int("attempts", 2),
		attribute.StringSlice("tags", []string{"a", "b"}),
	)
	span.RecordError(errors.New("boom"))
	span.SetStatus(codes.Error, "boom")
	span.End()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "span", rec["msg"])
	assert.Equal(t, "nvd.lookup", rec["name"])
	assert.Equal(t, "Error", rec["status"])
	assert.Equal(t, "boom", rec["status_message"])

	attrs, ok := rec["attributes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CVE-2021-44228", attrs["cve"])
	assert.Equal(t, float64(2), attrs["attempts"])
	assert.Contains(t, attrs["tags"], "a")
}
