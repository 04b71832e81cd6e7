package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/zero-day-ai/taskforge/entity"
)

// Queue names.
const (
	ExecutionsQueue = "executions-queue"
	FindingsQueue   = "findings-queue"
)

// HeartbeatTTL is how long a worker heartbeat stays valid.
const HeartbeatTTL = 30 * time.Second

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("queue client closed")

// ExecutionMessage asks a worker to run one planned execution.
type ExecutionMessage struct {
	// ExecutionID identifies the persisted execution record
	ExecutionID string `json:"execution_id"`

	// TaskID is the task the execution was planned from
	TaskID string `json:"task_id"`

	// Tool is the registered tool name
	Tool string `json:"tool"`

	// Command is the tool binary
	Command string `json:"command"`

	// Arguments is the fully rendered argument string
	Arguments string `json:"arguments"`

	// Entities are the resolved target entities, in planning order
	Entities entity.List `json:"entities"`

	// TraceID and SpanID carry the submitting span across the queue
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// SubmittedAt is the Unix timestamp in milliseconds when the message was pushed
	SubmittedAt int64 `json:"submitted_at"`
}

// FindingsMessage carries the findings of a completed execution to the
// enrichment and notification stage.
type FindingsMessage struct {
	ExecutionID string      `json:"execution_id"`
	TaskID      string      `json:"task_id"`
	Tool        string      `json:"tool"`
	Findings    entity.List `json:"findings"`
	TraceID     string      `json:"trace_id,omitempty"`
	SpanID      string      `json:"span_id,omitempty"`
	CompletedAt int64       `json:"completed_at"`
}

// IsValid checks the required fields of an ExecutionMessage.
func (m *ExecutionMessage) IsValid() error {
	if m.ExecutionID == "" {
		return fmt.Errorf("execution_id is required")
	}
	if m.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if m.Tool == "" {
		return fmt.Errorf("tool name is required")
	}
	if m.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", m.SubmittedAt)
	}
	return nil
}

// Age returns the time since the message was submitted.
func (m *ExecutionMessage) Age() time.Duration {
	if m.SubmittedAt <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixMilli()-m.SubmittedAt) * time.Millisecond
}

// IsValid checks the required fields of a FindingsMessage.
func (m *FindingsMessage) IsValid() error {
	if m.ExecutionID == "" {
		return fmt.Errorf("execution_id is required")
	}
	if m.CompletedAt <= 0 {
		return fmt.Errorf("completed_at must be positive, got %d", m.CompletedAt)
	}
	return nil
}
