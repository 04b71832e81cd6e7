// Package tracing sets up OpenTelemetry tracing for taskforge processes and
// carries span context across the work queues.
//
// Queue messages hold the hex trace and span IDs of the span that produced
// them. Consumers call ParentContext before starting their own span, so an
// execution run and its findings batch join the trace of the submitting
// task:
//
//	traceID, spanID := tracing.IDs(ctx)
//	msg := queue.ExecutionMessage{TraceID: traceID, SpanID: spanID, ...}
//
//	// in the worker
//	ctx = tracing.ParentContext(ctx, msg.TraceID, msg.SpanID)
//	ctx, span := tracer.Start(ctx, "execution.run")
package tracing
