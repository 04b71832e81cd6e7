package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zero-day-ai/taskforge/enrich"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/notify"
	"github.com/zero-day-ai/taskforge/queue"
	"github.com/zero-day-ai/taskforge/store"
	"github.com/zero-day-ai/taskforge/toolerr"
	"github.com/zero-day-ai/taskforge/tracing"
)

// Enricher completes vulnerability findings. *enrich.Enricher implements it.
type Enricher interface {
	Enrich(ctx context.Context, findings []entity.Entity) (enrich.Summary, error)
}

// Notifier delivers execution notifications. *notify.Dispatcher implements it.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event, members []notify.User) (notify.Report, error)
}

// FindingsStore is the persistence the findings pool needs.
type FindingsStore interface {
	store.Executions
	store.Findings
	store.Users
}

// FindingsPool consumes the findings queue.
type FindingsPool struct {
	consumer
	store    FindingsStore
	enricher Enricher
	notifier Notifier
}

// NewFindingsPool creates a pool reading queue.FindingsQueue from q. A nil
// enricher or notifier disables that stage.
func NewFindingsPool(q queue.Client, st FindingsStore, enricher Enricher, notifier Notifier, opts Options) *FindingsPool {
	opts = opts.withDefaults()
	return &FindingsPool{
		consumer: newConsumer(PoolFindings, queue.FindingsQueue, q, opts),
		store:    st,
		enricher: enricher,
		notifier: notifier,
	}
}

// Run consumes findings batches until ctx is cancelled or the queue is closed.
func (p *FindingsPool) Run(ctx context.Context) error {
	return p.run(ctx, p.handle)
}

func (p *FindingsPool) handle(ctx context.Context, logger *slog.Logger, payload []byte) {
	var msg queue.FindingsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Error("dropping undecodable findings message", "error", err)
		return
	}
	if err := p.Process(ctx, &msg); err != nil {
		logger.Error("findings processing failed",
			"execution_id", msg.ExecutionID,
			"error", err,
		)
	}
}

// Process enriches the findings in msg, stores them, and notifies the
// interested users. Notification failures are logged, not returned.
func (p *FindingsPool) Process(ctx context.Context, msg *queue.FindingsMessage) error {
	if err := msg.IsValid(); err != nil {
		return toolerr.New(msg.Tool, "process", toolerr.ErrCodeInvalidInput, err.Error())
	}
	logger := p.logger.With("execution_id", msg.ExecutionID, "tool", msg.Tool)

	ctx = tracing.ParentContext(ctx, msg.TraceID, msg.SpanID)
	ctx, span := p.opts.Tracer.Start(ctx, "findings.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("execution_id", msg.ExecutionID),
		attribute.Int("findings", len(msg.Findings)),
	)

	findings := []entity.Entity(msg.Findings)

	if p.enricher != nil {
		sum, err := p.enricher.Enrich(ctx, findings)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("enrichment of execution %s interrupted: %w", msg.ExecutionID, err)
		}
		p.opts.Metrics.Enriched(sum.Enriched, sum.Degraded, sum.Skipped)
		span.SetAttributes(
			attribute.Int("enriched", sum.Enriched),
			attribute.Int("degraded", sum.Degraded),
		)
		if sum.Enriched+sum.Degraded > 0 {
			logger.InfoContext(ctx, "vulnerabilities enriched",
				"enriched", sum.Enriched,
				"degraded", sum.Degraded,
				"skipped", sum.Skipped,
			)
		}
	}

	if err := p.store.SaveFindings(ctx, msg.ExecutionID, findings); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save findings of execution %s: %w", msg.ExecutionID, err)
	}
	p.opts.Metrics.VulnerabilitiesStored(findings)

	if p.notifier == nil {
		return nil
	}
	if err := p.notify(ctx, logger, msg.ExecutionID, findings); err != nil {
		span.RecordError(err)
		logger.WarnContext(ctx, "notification incomplete", "error", err)
	}
	return nil
}

// notify loads the execution context and hands the event to the notifier.
func (p *FindingsPool) notify(ctx context.Context, logger *slog.Logger, executionID string, findings []entity.Entity) error {
	e, err := p.store.Execution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to load execution: %w", err)
	}
	task, err := p.store.Task(ctx, e.TaskID)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", e.TaskID, err)
	}

	executor, err := p.store.User(ctx, task.ExecutorID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load executor %s: %w", task.ExecutorID, err)
	}
	members, err := p.store.ProjectMembers(ctx, task.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load members of project %s: %w", task.ProjectID, err)
	}

	report, err := p.notifier.Notify(ctx, notify.Event{
		Task:      task,
		Execution: e,
		Executor:  executor,
		Findings:  findings,
	}, members)
	p.opts.Metrics.Notified(report.Sent, report.Failed, report.Skipped)
	logger.DebugContext(ctx, "notifications dispatched",
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return err
}
