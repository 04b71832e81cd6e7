// Package store persists tasks, executions, findings and the target and
// user data the pipeline reads.
//
// Memory is used by tests and the plan command; Postgres is the production
// implementation.
package store

import (
	"context"
	"errors"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/notify"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional update finds the record
	// in another state than expected.
	ErrConflict = errors.New("conflict")
)

// Targets reads what a task's inputs select from.
type Targets interface {
	Target(ctx context.Context, id string) (*entity.Target, error)
	TargetPorts(ctx context.Context, targetID string) ([]*entity.TargetPort, error)
	TargetEndpoints(ctx context.Context, targetID string) ([]*entity.TargetEndpoint, error)

	// Wordlists returns the wordlists in the order of ids.
	Wordlists(ctx context.Context, ids []string) ([]*entity.Wordlist, error)

	// TargetInputs returns the target's parameters followed by the findings
	// of earlier executions against it, oldest first.
	TargetInputs(ctx context.Context, targetID string) ([]entity.Entity, error)
}

// Executions persists tasks and their executions.
type Executions interface {
	// CreateTask stores a task and its planned executions atomically.
	CreateTask(ctx context.Context, task *execution.Task, execs []*execution.Execution) error

	Task(ctx context.Context, id string) (*execution.Task, error)
	Execution(ctx context.Context, id string) (*execution.Execution, error)

	// UpdateExecution writes e if the stored status is still expected and
	// returns ErrConflict otherwise.
	UpdateExecution(ctx context.Context, e *execution.Execution, expected execution.Status) error
}

// Findings persists the findings of executions.
type Findings interface {
	// SaveFindings upserts findings by ID under an execution.
	SaveFindings(ctx context.Context, executionID string, findings []entity.Entity) error

	// Findings returns an execution's findings in insertion order.
	Findings(ctx context.Context, executionID string) ([]entity.Entity, error)
}

// Users reads notification recipients.
type Users interface {
	User(ctx context.Context, id string) (notify.User, error)
	ProjectMembers(ctx context.Context, projectID string) ([]notify.User, error)
}

// Store is the full persistence boundary.
type Store interface {
	Targets
	Executions
	Findings
	Users
}
