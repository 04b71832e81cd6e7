package taskforge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zero-day-ai/taskforge/execution"
)

// Sentinel errors for Engine operations. Use errors.Is to check for them.
var (
	// ErrToolNotFound indicates the task names a tool that is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrTargetNotFound indicates the task's target does not exist.
	ErrTargetNotFound = errors.New("target not found")

	// ErrExecutionNotFound indicates the execution does not exist.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrNotCancellable indicates the execution already left the requested status.
	ErrNotCancellable = execution.ErrNotCancellable

	// ErrInvalidConfig indicates the engine was built without a required collaborator.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize engine errors.
const (
	KindNotFound      = "not_found"
	KindValidation    = "validation"
	KindConfiguration = "configuration"
	KindConflict      = "conflict"
	KindInternal      = "internal"
)

// Error wraps an engine failure with the operation and its kind.
//
//	err := &Error{Op: "Engine.Cancel", Kind: KindConflict, Err: ErrNotCancellable}
type Error struct {
	// Op is the operation that failed (e.g., "Engine.Submit").
	Op string

	// Kind categorizes the error (e.g., KindNotFound).
	Kind string

	// Err is the underlying error.
	Err error

	// Context holds identifiers useful for debugging (optional).
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("taskforge: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("taskforge: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("taskforge: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, and by Op when the target sets one,
// then falls back to the wrapped error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok && t.Kind != "" && e.Kind == t.Kind {
		if t.Op == "" || e.Op == t.Op {
			return true
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of e with ctx merged into its context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	out := *e
	out.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		out.Context[k] = v
	}
	for k, v := range ctx {
		out.Context[k] = v
	}
	return &out
}

func newError(op, kind string, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// CloseWithLog closes closer and logs a failure at warning level. A nil
// logger uses slog.Default.
//
//	defer taskforge.CloseWithLog(q, logger, "queue client")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
