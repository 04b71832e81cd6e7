package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/exec"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/queue"
	"github.com/zero-day-ai/taskforge/store"
	"github.com/zero-day-ai/taskforge/tool"
	"github.com/zero-day-ai/taskforge/toolerr"
	"github.com/zero-day-ai/taskforge/tracing"
)

// Invoker runs one execution. *exec.CommandInvoker implements it.
type Invoker interface {
	Invoke(ctx context.Context, inv exec.Invocation) (*exec.Output, error)
}

// Tools resolves registered tools. *tool.Registry implements it.
type Tools interface {
	Get(name string) (*tool.Tool, bool)
}

// ExecutionStore is the persistence the execution pool needs.
type ExecutionStore interface {
	store.Executions
	store.Findings
}

// ExecutionPool consumes the executions queue.
type ExecutionPool struct {
	consumer
	store   ExecutionStore
	tools   Tools
	invoker Invoker
	now     func() time.Time

	// binaryExists reports whether a tool command can be started.
	binaryExists func(string) bool
}

// NewExecutionPool creates a pool reading queue.ExecutionsQueue from q.
func NewExecutionPool(q queue.Client, st ExecutionStore, tools Tools, invoker Invoker, opts Options) *ExecutionPool {
	opts = opts.withDefaults()
	return &ExecutionPool{
		consumer: newConsumer(PoolExecutions, queue.ExecutionsQueue, q, opts),
		store:    st,
		tools:    tools,
		invoker:  invoker,
		now:      func() time.Time { return time.Now().UTC() },

		binaryExists: exec.BinaryExists,
	}
}

// Run consumes executions until ctx is cancelled or the queue is closed.
func (p *ExecutionPool) Run(ctx context.Context) error {
	return p.run(ctx, p.handle)
}

func (p *ExecutionPool) handle(ctx context.Context, logger *slog.Logger, payload []byte) {
	var msg queue.ExecutionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Error("dropping undecodable execution message", "error", err)
		return
	}
	if err := p.Process(ctx, &msg); err != nil {
		logger.Error("execution processing failed",
			"execution_id", msg.ExecutionID,
			"tool", msg.Tool,
			"error", err,
		)
	}
}

// Process runs the execution named by msg.
//
// Executions that are no longer requested are left untouched. Executions
// whose tool is unregistered or whose binary is missing are skipped without
// being claimed. Otherwise the execution is claimed as running, the tool is
// invoked, and the final status with the tool output is persisted. Findings
// of a completed execution are saved and then pushed onto the findings
// queue.
func (p *ExecutionPool) Process(ctx context.Context, msg *queue.ExecutionMessage) error {
	if err := msg.IsValid(); err != nil {
		return toolerr.New(msg.Tool, "process", toolerr.ErrCodeInvalidInput, err.Error())
	}
	logger := p.logger.With("execution_id", msg.ExecutionID, "task_id", msg.TaskID, "tool", msg.Tool)

	ctx = tracing.ParentContext(ctx, msg.TraceID, msg.SpanID)
	ctx, span := p.opts.Tracer.Start(ctx, "execution.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("execution_id", msg.ExecutionID),
		attribute.String("tool", msg.Tool),
	)

	e, err := p.store.Execution(ctx, msg.ExecutionID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to load execution %s: %w", msg.ExecutionID, err)
	}
	if e.Status != execution.StatusRequested {
		logger.InfoContext(ctx, "skipping execution", "status", e.Status)
		span.SetAttributes(attribute.String("status", e.Status.String()))
		return nil
	}

	t, ok := p.tools.Get(e.Tool)
	switch {
	case !ok:
		return p.skip(ctx, logger, e, fmt.Sprintf("tool %q is not registered", e.Tool))
	case !p.binaryExists(t.Command):
		return p.skip(ctx, logger, e, fmt.Sprintf("binary %q not found", t.Command))
	}

	if err := e.Transition(execution.StatusRunning, p.now()); err != nil {
		return err
	}
	if err := p.store.UpdateExecution(ctx, e, execution.StatusRequested); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.InfoContext(ctx, "execution claimed or cancelled concurrently, skipping")
			return nil
		}
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to claim execution %s: %w", e.ID, err)
	}
	logger.InfoContext(ctx, "execution started", "age", msg.Age())

	out, runErr := p.invoker.Invoke(ctx, exec.Invocation{
		ExecutionID: e.ID,
		Tool:        t.Name,
		Command:     t.Command,
		Arguments:   e.Arguments,
		Format:      t.Format(),
		Entities:    e.Entities,
	})
	if out == nil {
		out = &exec.Output{}
	}
	e.OutputFile = out.File
	e.OutputPlain = out.Plain
	e.OutputError = out.Error

	// The outcome is recorded even when ctx was cancelled mid-run.
	persistCtx := context.WithoutCancel(ctx)

	next := execution.StatusCompleted
	if runErr != nil {
		next = execution.StatusError
	}
	if runErr != nil && e.OutputError == "" {
		e.OutputError = runErr.Error()
	}

	if err := p.finish(persistCtx, e, execution.StatusRunning, next); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.opts.Metrics.ExecutionFinished(e.Tool, e.Status.String(), e.Duration())
	span.SetAttributes(attribute.String("status", e.Status.String()))

	if runErr != nil {
		transient := toolerr.IsTransient(runErr)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		span.SetAttributes(attribute.Bool("transient", transient))
		logger.WarnContext(ctx, "execution did not complete",
			"status", e.Status,
			"duration", e.Duration(),
			"transient", transient,
			"error", runErr,
		)
		return nil
	}

	findings := entity.Findings(out.Findings)
	p.opts.Metrics.FindingsParsed(findings)
	span.SetAttributes(attribute.Int("findings", len(findings)))
	logger.InfoContext(ctx, "execution completed",
		"duration", e.Duration(),
		"findings", len(findings),
	)

	if err := p.store.SaveFindings(persistCtx, e.ID, findings); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save findings of execution %s: %w", e.ID, err)
	}

	traceID, spanID := tracing.IDs(ctx)
	fmsg := queue.FindingsMessage{
		ExecutionID: e.ID,
		TaskID:      e.TaskID,
		Tool:        e.Tool,
		Findings:    entity.List(findings),
		TraceID:     traceID,
		SpanID:      spanID,
		CompletedAt: e.End.UnixMilli(),
	}
	if err := queue.PushJSON(persistCtx, p.client, queue.FindingsQueue, fmsg); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to enqueue findings of execution %s: %w", e.ID, err)
	}
	return nil
}

// skip records a requested execution as skipped without running it.
func (p *ExecutionPool) skip(ctx context.Context, logger *slog.Logger, e *execution.Execution, reason string) error {
	e.OutputError = reason
	if err := p.finish(ctx, e, execution.StatusRequested, execution.StatusSkipped); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.InfoContext(ctx, "execution claimed or cancelled concurrently, skipping")
			return nil
		}
		return err
	}
	p.opts.Metrics.ExecutionFinished(e.Tool, e.Status.String(), 0)
	logger.WarnContext(ctx, "execution skipped", "reason", reason)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("status", e.Status.String()))
	return nil
}

// finish moves e from expected to next and persists it.
func (p *ExecutionPool) finish(ctx context.Context, e *execution.Execution, expected, next execution.Status) error {
	if err := e.Transition(next, p.now()); err != nil {
		return err
	}
	if err := p.store.UpdateExecution(ctx, e, expected); err != nil {
		return fmt.Errorf("failed to record execution %s as %s: %w", e.ID, next, err)
	}
	return nil
}
