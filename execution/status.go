package execution

import "fmt"

// Status is the lifecycle state of an execution.
type Status string

const (
	StatusRequested Status = "requested"
	StatusSkipped   Status = "skipped"
	StatusRunning   Status = "running"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
	StatusCompleted Status = "completed"
)

var transitions = map[Status][]Status{
	StatusRequested: {StatusRunning, StatusCancelled, StatusSkipped},
	StatusRunning:   {StatusCompleted, StatusError},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusSkipped, StatusRunning, StatusCancelled, StatusError, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus validates a stored status value.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown execution status %q", v)
	}
	return s, nil
}
