package execution

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/tool"
)

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusRequested, StatusRunning, true},
		{StatusRequested, StatusCancelled, true},
		{StatusRequested, StatusSkipped, true},
		{StatusRequested, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusError, true},
		{StatusRunning, StatusCancelled, false},
		{StatusRunning, StatusSkipped, false},
		{StatusCancelled, StatusRunning, false},
		{StatusCompleted, StatusError, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, Status("bogus").IsTerminal())
}

func TestExecution_Lifecycle(t *testing.T) {
	e := New("task-1", "nmap", "-sV 10.0.0.1", []entity.Entity{&entity.Target{ID: "t1", Address: "10.0.0.1"}})
	require.NotEmpty(t, e.ID)
	assert.Equal(t, StatusRequested, e.Status)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, e.Transition(StatusRunning, start))
	assert.Equal(t, start, e.Start)
	assert.True(t, e.End.IsZero())

	end := start.Add(90 * time.Second)
	require.NoError(t, e.Transition(StatusCompleted, end))
	assert.Equal(t, end, e.End)
	assert.Equal(t, 90*time.Second, e.Duration())

	err := e.Transition(StatusRunning, end)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExecution_CancelOnlyWhileRequested(t *testing.T) {
	now := time.Now()

	e := New("task-1", "nmap", "", nil)
	require.NoError(t, e.Cancel(now))
	assert.Equal(t, StatusCancelled, e.Status)
	assert.Equal(t, now, e.End)

	running := New("task-1", "nmap", "", nil)
	require.NoError(t, running.Transition(StatusRunning, now))
	assert.ErrorIs(t, running.Cancel(now), ErrNotCancellable)
	assert.Equal(t, StatusRunning, running.Status)
}

func TestExecution_JSONRoundTripKeepsEntities(t *testing.T) {
	e := New("task-1", "nikto", "-h 10.0.0.1:80", []entity.Entity{
		&entity.Target{ID: "t1", Address: "10.0.0.1"},
		&entity.TargetPort{ID: "p1", TargetID: "t1", Port: 80},
	})
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"start"`)

	var out Execution
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, e.Entities, out.Entities)
	assert.Equal(t, StatusRequested, out.Status)
}

func TestNewTask(t *testing.T) {
	task := NewTask("proj", "t1", "gobuster", tool.IntensityNormal, "u1", "w1", "w2")
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, []string{"w1", "w2"}, task.WordlistIDs)
	assert.False(t, task.CreatedAt.IsZero())

	_, err := ParseStatus("running")
	assert.NoError(t, err)
	_, err = ParseStatus("paused")
	assert.Error(t, err)
}
