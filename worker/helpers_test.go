package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/exec"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/notify"
	"github.com/zero-day-ai/taskforge/queue"
	"github.com/zero-day-ai/taskforge/store"
	"github.com/zero-day-ai/taskforge/tool"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		Concurrency:       2,
		PopTimeout:        50 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
		Logger:            newTestLogger(),
	}
}

func newTestRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	_, err := r.Register(tool.Tool{
		Name:         "nuclei",
		Command:      "nuclei",
		Arguments:    "-u {target} -jsonl -o {output}",
		OutputFormat: tool.OutputJSONLVulnerability,
		Inputs: []*tool.Input{
			{Name: "target", Kind: entity.KindTarget, Argument: "{target}", Required: true},
		},
	})
	require.NoError(t, err)
	return r
}

// seed stores a task with one requested execution and returns both.
func seed(t *testing.T, st *store.Memory) (*execution.Task, *execution.Execution) {
	t.Helper()
	target := &entity.Target{ID: "t1", ProjectID: "proj", Address: "10.0.0.1", Type: entity.TargetPrivateIP}
	st.PutTarget(target)

	task := execution.NewTask("proj", "t1", "nuclei", tool.IntensityNormal, "u-exec")
	e := execution.New(task.ID, "nuclei", "-u 10.0.0.1 -jsonl -o {output}", []entity.Entity{target})
	require.NoError(t, st.CreateTask(context.Background(), task, []*execution.Execution{e}))
	return task, e
}

func executionMessage(task *execution.Task, e *execution.Execution) *queue.ExecutionMessage {
	return &queue.ExecutionMessage{
		ExecutionID: e.ID,
		TaskID:      task.ID,
		Tool:        e.Tool,
		Command:     "nuclei",
		Arguments:   e.Arguments,
		Entities:    e.Entities,
		SubmittedAt: fixedNow.UnixMilli(),
	}
}

// fakeInvoker returns a canned result and records invocations.
type fakeInvoker struct {
	mu    sync.Mutex
	calls []exec.Invocation
	out   *exec.Output
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, inv exec.Invocation) (*exec.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)
	if f.out == nil {
		return &exec.Output{}, f.err
	}
	cp := *f.out
	return &cp, f.err
}

func (f *fakeInvoker) Calls() []exec.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exec.Invocation(nil), f.calls...)
}

// recordingNotifier captures events.
type recordingNotifier struct {
	mu      sync.Mutex
	events  []notify.Event
	members [][]notify.User
	report  notify.Report
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event, members []notify.User) (notify.Report, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	n.members = append(n.members, members)
	return n.report, n.err
}

func (n *recordingNotifier) Events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}
