package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/tool"
)

var (
	// ErrInvalidTransition is returned for a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid execution status transition")

	// ErrNotCancellable is returned when cancelling an execution that is no longer requested.
	ErrNotCancellable = errors.New("execution is not cancellable")
)

// Task is a user request to run one tool against one target.
type Task struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	TargetID    string         `json:"target_id"`
	Tool        string         `json:"tool"`
	Intensity   tool.Intensity `json:"intensity"`
	WordlistIDs []string       `json:"wordlist_ids,omitempty"`
	ExecutorID  string         `json:"executor_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewTask creates a task with a fresh ID.
func NewTask(projectID, targetID, toolName string, intensity tool.Intensity, executorID string, wordlistIDs ...string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		TargetID:    targetID,
		Tool:        toolName,
		Intensity:   intensity,
		WordlistIDs: wordlistIDs,
		ExecutorID:  executorID,
		CreatedAt:   time.Now().UTC(),
	}
}

// Execution is one fully resolved run of a task's tool.
type Execution struct {
	ID          string      `json:"id"`
	TaskID      string      `json:"task_id"`
	Tool        string      `json:"tool"`
	Arguments   string      `json:"arguments"`
	Entities    entity.List `json:"entities"`
	Status      Status      `json:"status"`
	Start       time.Time   `json:"start,omitzero"`
	End         time.Time   `json:"end,omitzero"`
	OutputFile  string      `json:"output_file,omitempty"`
	OutputPlain string      `json:"output_plain,omitempty"`
	OutputError string      `json:"output_error,omitempty"`
}

// New creates a requested execution for a task.
func New(taskID, toolName, arguments string, entities []entity.Entity) *Execution {
	return &Execution{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Tool:      toolName,
		Arguments: arguments,
		Entities:  entity.List(entities),
		Status:    StatusRequested,
	}
}

// Transition moves the execution to next, recording the start time on
// running and the end time on every terminal status.
func (e *Execution) Transition(next Status, now time.Time) error {
	if !e.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, next)
	}
	e.Status = next
	if next == StatusRunning {
		e.Start = now
	}
	if next.IsTerminal() {
		e.End = now
	}
	return nil
}

// Cancel marks a requested execution cancelled.
func (e *Execution) Cancel(now time.Time) error {
	if e.Status != StatusRequested {
		return fmt.Errorf("%w: status is %s", ErrNotCancellable, e.Status)
	}
	return e.Transition(StatusCancelled, now)
}

// Duration returns the run time, or zero if the execution has not ended.
func (e *Execution) Duration() time.Duration {
	if e.Start.IsZero() || e.End.IsZero() {
		return 0
	}
	return e.End.Sub(e.Start)
}
