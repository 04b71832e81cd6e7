package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/finding"
	"github.com/zero-day-ai/taskforge/notify"
	"github.com/zero-day-ai/taskforge/tool"
)

func seededMemory(t *testing.T) (*Memory, *execution.Task, *execution.Execution) {
	t.Helper()
	m := NewMemory()
	m.PutTarget(&entity.Target{ID: "t1", ProjectID: "p1", Address: "10.0.0.1", Type: entity.TargetPrivateIP})
	m.PutTargetPort(&entity.TargetPort{ID: "tp443", TargetID: "t1", Port: 443})
	m.PutTargetPort(&entity.TargetPort{ID: "tp80", TargetID: "t1", Port: 80})
	m.PutTargetPort(&entity.TargetPort{ID: "other", TargetID: "t2", Port: 22})
	m.PutTargetEndpoint(&entity.TargetEndpoint{ID: "te1", TargetPortID: "tp80", Endpoint: "/admin"})
	m.PutTargetEndpoint(&entity.TargetEndpoint{ID: "te2", TargetPortID: "other", Endpoint: "/x"})
	m.PutWordlist(&entity.Wordlist{ID: "w1", Name: "dirs", Type: entity.WordlistEndpoint, Path: "/wl/dirs.txt"})
	m.PutWordlist(&entity.Wordlist{ID: "w2", Name: "subs", Type: entity.WordlistSubdomain, Path: "/wl/subs.txt"})
	m.PutParameter("t1", &entity.Parameter{ID: "param1", Key: entity.ParamTechnology, Value: "WordPress"})

	task := execution.NewTask("p1", "t1", "nmap", tool.IntensityNormal, "alice")
	exec := execution.New(task.ID, "nmap", "-sV 10.0.0.1", []entity.Entity{&entity.Target{ID: "t1", Address: "10.0.0.1"}})
	require.NoError(t, m.CreateTask(context.Background(), task, []*execution.Execution{exec}))
	return m, task, exec
}

func TestMemory_Targets(t *testing.T) {
	m, _, _ := seededMemory(t)
	ctx := context.Background()

	target, err := m.Target(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", target.Address)

	_, err = m.Target(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ports, err := m.TargetPorts(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, ports, 2)

	eps, err := m.TargetEndpoints(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "/admin", eps[0].Endpoint)

	wls, err := m.Wordlists(ctx, []string{"w2", "w1"})
	require.NoError(t, err)
	assert.Equal(t, "w2", wls[0].ID)
	assert.Equal(t, "w1", wls[1].ID)

	_, err = m.Wordlists(ctx, []string{"w3"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ExecutionLifecycle(t *testing.T) {
	m, task, exec := seededMemory(t)
	ctx := context.Background()

	got, err := m.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "nmap", got.Tool)

	loaded, err := m.Execution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusRequested, loaded.Status)
	require.Len(t, loaded.Entities, 1)

	now := time.Now()
	require.NoError(t, loaded.Transition(execution.StatusRunning, now))
	require.NoError(t, m.UpdateExecution(ctx, loaded, execution.StatusRequested))

	// a second claim sees the execution running
	err = m.UpdateExecution(ctx, loaded, execution.StatusRequested)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, loaded.Transition(execution.StatusCompleted, now.Add(time.Second)))
	require.NoError(t, m.UpdateExecution(ctx, loaded, execution.StatusRunning))

	final, err := m.Execution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, final.Status)
	assert.Equal(t, time.Second, final.Duration())
}

func TestMemory_CreateTaskRejectsDuplicates(t *testing.T) {
	m, task, exec := seededMemory(t)
	err := m.CreateTask(context.Background(), task, []*execution.Execution{exec})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m, _, exec := seededMemory(t)
	ctx := context.Background()

	loaded, err := m.Execution(ctx, exec.ID)
	require.NoError(t, err)
	loaded.Entities[0].(*entity.Target).Address = "changed"
	loaded.Status = execution.StatusError

	again, err := m.Execution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", again.Entities[0].(*entity.Target).Address)
	assert.Equal(t, execution.StatusRequested, again.Status)
}

func TestMemory_FindingsUpsertAndTargetInputs(t *testing.T) {
	m, _, exec := seededMemory(t)
	ctx := context.Background()

	v := &entity.Vulnerability{ID: "v1", Name: "Log4Shell", CVE: "CVE-2021-44228", Severity: finding.SeverityMedium}
	host := &entity.Host{ID: "h1", Address: "10.0.0.1"}
	require.NoError(t, m.SaveFindings(ctx, exec.ID, []entity.Entity{v, host}))

	v.Severity = finding.SeverityCritical
	require.NoError(t, m.SaveFindings(ctx, exec.ID, []entity.Entity{v}))

	findings, err := m.Findings(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, finding.SeverityCritical, findings[0].(*entity.Vulnerability).Severity)

	inputs, err := m.TargetInputs(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	assert.Equal(t, entity.KindParameter, inputs[0].Kind())
	assert.Equal(t, "v1", inputs[1].Identity())

	assert.Error(t, m.SaveFindings(ctx, exec.ID, []entity.Entity{&entity.Host{Address: "x"}}))
	assert.ErrorIs(t, m.SaveFindings(ctx, "nope", []entity.Entity{host}), ErrNotFound)
}

func TestMemory_Users(t *testing.T) {
	m := NewMemory()
	m.PutUser(notify.User{ID: "alice", Scope: notify.ScopeOwnExecutions})
	m.PutUser(notify.User{ID: "bob", Scope: notify.ScopeAllExecutions})
	m.AddMember("p1", "alice")
	m.AddMember("p1", "bob")
	m.AddMember("p1", "bob")
	ctx := context.Background()

	u, err := m.User(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, notify.ScopeOwnExecutions, u.Scope)

	members, err := m.ProjectMembers(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = m.User(ctx, "carol")
	assert.ErrorIs(t, err, ErrNotFound)
}
