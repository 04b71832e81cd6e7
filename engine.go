package taskforge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/metrics"
	"github.com/zero-day-ai/taskforge/planner"
	"github.com/zero-day-ai/taskforge/queue"
	"github.com/zero-day-ai/taskforge/store"
	"github.com/zero-day-ai/taskforge/tool"
	"github.com/zero-day-ai/taskforge/tracing"
)

// Tools resolves registered tools. *tool.Registry implements it.
type Tools interface {
	Get(name string) (*tool.Tool, bool)
}

// Store is the persistence the engine needs.
type Store interface {
	store.Targets
	store.Executions
}

// Plan is the outcome of planning a task.
type Plan struct {
	Task       *execution.Task
	Executions []*execution.Execution

	// Err joins the rendering failures of executions that were dropped
	// while their siblings were planned.
	Err error
}

// Engine plans tasks into executions and enqueues them.
type Engine struct {
	tools   Tools
	store   Store
	queue   queue.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an Engine. The queue may be nil for an engine that only
// previews plans.
func New(tools Tools, st Store, q queue.Client, opts ...Option) (*Engine, error) {
	if tools == nil {
		return nil, newError("New", KindConfiguration, fmt.Errorf("%w: tool registry is required", ErrInvalidConfig))
	}
	if st == nil {
		return nil, newError("New", KindConfiguration, fmt.Errorf("%w: store is required", ErrInvalidConfig))
	}

	cfg := engineConfig{
		logger: slog.Default(),
		tracer: otel.Tracer(tracing.InstrumentationName),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		tools:   tools,
		store:   st,
		queue:   q,
		logger:  cfg.logger,
		tracer:  cfg.tracer,
		metrics: cfg.metrics,
		now:     cfg.now,
	}, nil
}

// Preview plans task without storing or enqueueing anything.
func (e *Engine) Preview(ctx context.Context, task *execution.Task) (*Plan, error) {
	ctx, span := e.tracer.Start(ctx, "task.preview")
	defer span.End()

	plan, err := e.plan(ctx, "Engine.Preview", task)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return plan, err
}

// Submit plans task, stores it with its executions and enqueues every
// execution.
//
// A task with no satisfiable execution is stored without executions and
// returns no error. Enqueue failures are returned after the task is
// stored; the affected executions stay requested.
func (e *Engine) Submit(ctx context.Context, task *execution.Task) (*Plan, error) {
	const op = "Engine.Submit"

	ctx, span := e.tracer.Start(ctx, "task.submit")
	defer span.End()

	plan, err := e.plan(ctx, op, task)
	if err != nil {
		e.metrics.TaskPlanned(toolOf(task), 0, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	e.metrics.TaskPlanned(task.Tool, len(plan.Executions), plan.Err)

	if err := e.store.CreateTask(ctx, task, plan.Executions); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, newError(op, KindInternal, fmt.Errorf("failed to store task %s: %w", task.ID, err))
	}

	logger := e.logger.With("task_id", task.ID, "tool", task.Tool)
	if len(plan.Executions) == 0 {
		logger.InfoContext(ctx, "task has no executable input combination")
		return plan, nil
	}
	if plan.Err != nil {
		logger.WarnContext(ctx, "some executions could not be planned", "error", plan.Err)
	}

	if e.queue == nil {
		return plan, newError(op, KindConfiguration, fmt.Errorf("%w: queue is required to submit", ErrInvalidConfig))
	}

	t, _ := e.tools.Get(task.Tool)
	traceID, spanID := tracing.IDs(ctx)
	var errs []error
	for _, ex := range plan.Executions {
		msg := queue.ExecutionMessage{
			ExecutionID: ex.ID,
			TaskID:      task.ID,
			Tool:        task.Tool,
			Command:     t.Command,
			Arguments:   ex.Arguments,
			Entities:    ex.Entities,
			TraceID:     traceID,
			SpanID:      spanID,
			SubmittedAt: e.now().UnixMilli(),
		}
		if err := queue.PushJSON(ctx, e.queue, queue.ExecutionsQueue, msg); err != nil {
			errs = append(errs, fmt.Errorf("execution %s: %w", ex.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return plan, newError(op, KindInternal, err).WithContext(map[string]any{"task_id": task.ID})
	}

	logger.InfoContext(ctx, "task submitted", "executions", len(plan.Executions))
	return plan, nil
}

// plan loads the candidate pool and runs the planner.
func (e *Engine) plan(ctx context.Context, op string, task *execution.Task) (*Plan, error) {
	if task == nil {
		return nil, newError(op, KindValidation, errors.New("task is required"))
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("task_id", task.ID),
		attribute.String("tool", task.Tool),
		attribute.Int("intensity", int(task.Intensity)),
	)

	t, ok := e.tools.Get(task.Tool)
	if !ok {
		return nil, newError(op, KindNotFound, fmt.Errorf("%w: %s", ErrToolNotFound, task.Tool))
	}
	if !t.SupportsIntensity(task.Intensity) {
		_, err := t.IntensityArgument(task.Intensity)
		return nil, newError(op, KindValidation, err)
	}

	pool, err := e.pool(ctx, task)
	if err != nil {
		return nil, newError(op, kindOf(err), err)
	}

	groups, planErr := planner.Plan(task, t, pool)
	if len(groups) == 0 && planErr != nil {
		return nil, newError(op, KindConfiguration, planErr)
	}

	plan := &Plan{Task: task, Err: planErr}
	for _, g := range groups {
		plan.Executions = append(plan.Executions, execution.New(task.ID, t.Name, g.Arguments, g.Entities))
	}
	span.SetAttributes(
		attribute.Int("candidates", pool.Len()),
		attribute.Int("executions", len(plan.Executions)),
	)
	return plan, nil
}

// pool reads every entity the task's inputs may select.
func (e *Engine) pool(ctx context.Context, task *execution.Task) (*planner.Pool, error) {
	target, err := e.store.Target(ctx, task.TargetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, task.TargetID)
		}
		return nil, fmt.Errorf("failed to load target %s: %w", task.TargetID, err)
	}
	if task.ProjectID != "" && target.ProjectID != "" && task.ProjectID != target.ProjectID {
		return nil, fmt.Errorf("%w: target %s, project %s", errForeignTarget, target.ID, task.ProjectID)
	}

	wordlists, err := e.store.Wordlists(ctx, task.WordlistIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load wordlists: %w", err)
	}
	ports, err := e.store.TargetPorts(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ports of target %s: %w", target.ID, err)
	}
	endpoints, err := e.store.TargetEndpoints(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load endpoints of target %s: %w", target.ID, err)
	}
	extra, err := e.store.TargetInputs(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inputs of target %s: %w", target.ID, err)
	}
	return planner.Candidates(wordlists, target, ports, endpoints, extra...), nil
}

// Cancel cancels an execution that no worker has claimed.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	const op = "Engine.Cancel"

	ex, err := e.store.Execution(ctx, executionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(op, KindNotFound, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID))
		}
		return newError(op, KindInternal, err)
	}

	if err := ex.Cancel(e.now()); err != nil {
		return newError(op, KindConflict, err)
	}
	if err := e.store.UpdateExecution(ctx, ex, execution.StatusRequested); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return newError(op, KindConflict, fmt.Errorf("%w: claimed by a worker", ErrNotCancellable))
		}
		return newError(op, KindInternal, err)
	}

	e.logger.InfoContext(ctx, "execution cancelled", "execution_id", ex.ID, "task_id", ex.TaskID)
	return nil
}

var errForeignTarget = errors.New("target belongs to another project")

func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrTargetNotFound), errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, errForeignTarget):
		return KindValidation
	default:
		return KindInternal
	}
}

func toolOf(task *execution.Task) string {
	if task == nil {
		return ""
	}
	return task.Tool
}
