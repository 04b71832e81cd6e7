package toolerr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes.
const (
	// ErrCodeConfiguration indicates a tool declaration the engine cannot serve
	ErrCodeConfiguration = "CONFIGURATION"

	// ErrCodeInvalidInput indicates invalid task or template values
	ErrCodeInvalidInput = "INVALID_INPUT"

	// ErrCodeExecutionFailed indicates the tool invocation failed
	ErrCodeExecutionFailed = "EXECUTION_FAILED"

	// ErrCodeBinaryNotFound indicates a required binary is not in PATH
	ErrCodeBinaryNotFound = "BINARY_NOT_FOUND"

	// ErrCodeTimeout indicates an operation timed out
	ErrCodeTimeout = "TIMEOUT"

	// ErrCodeParseError indicates failure to parse output or data
	ErrCodeParseError = "PARSE_ERROR"

	// ErrCodeNetworkError indicates a network-related error
	ErrCodeNetworkError = "NETWORK_ERROR"

	// ErrCodeEnrichment indicates a finding could not be enriched
	ErrCodeEnrichment = "ENRICHMENT_FAILED"

	// ErrCodeNotification indicates a notification could not be delivered
	ErrCodeNotification = "NOTIFICATION_FAILED"
)

// Error is a structured error type for pipeline operations.
// It records which tool and operation failed, a standard code, and the cause.
type Error struct {
	// Tool is the name of the tool the failing operation belongs to
	Tool string

	// Operation is the specific operation that failed (plan, format, invoke, enrich, notify)
	Operation string

	// Code is a standard error code constant
	Code string

	// Message is a human-readable error message
	Message string

	// Details contains additional context as key-value pairs
	Details map[string]any

	// Cause is the underlying error that caused this error
	Cause error

	// Class categorizes the error by its nature
	Class ErrorClass `json:"class,omitempty"`
}

// New creates a new structured error. The class defaults from the code.
//
// Example:
//
//	err := toolerr.New("nmap", "invoke", toolerr.ErrCodeBinaryNotFound, "nmap binary not found in PATH")
func New(tool, operation, code, message string) *Error {
	return &Error{
		Tool:      tool,
		Operation: operation,
		Code:      code,
		Message:   message,
		Class:     DefaultClassForCode(code),
	}
}

// Configuration creates an ErrCodeConfiguration error.
func Configuration(tool, operation, format string, args ...any) *Error {
	return New(tool, operation, ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

// WithCause adds an underlying error and returns the same instance for chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails adds additional context and returns the same instance for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithClass overrides the error classification.
func (e *Error) WithClass(class ErrorClass) *Error {
	e.Class = class
	return e
}

// Error formats the error as: "tool [operation/code]: message: cause"
//
// Examples:
//   - "nmap [invoke/BINARY_NOT_FOUND]: nmap binary not found in PATH"
//   - "dirsearch [plan/CONFIGURATION]: unknown entity kind \"domain\""
func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("%s [%s/%s]", e.Tool, e.Operation, e.Code))

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports equality for errors.Is. A target with an empty Tool or Operation
// matches any value in that field, so CodeOnly(ErrCodeConfiguration) matches
// every configuration error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	if t.Tool != "" && t.Tool != e.Tool {
		return false
	}
	return t.Operation == "" || t.Operation == e.Operation
}

// CodeOnly returns a matcher error for errors.Is that compares only the code.
func CodeOnly(code string) *Error {
	return &Error{Code: code}
}

// HasCode reports whether err (or anything it wraps) is an *Error with the given code.
func HasCode(err error, code string) bool {
	return errors.Is(err, CodeOnly(code))
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return HasCode(err, ErrCodeConfiguration)
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Class == ErrorClassTransient
	}
	return false
}

// Sentinel errors for common scenarios
var (
	// ErrBinaryNotFound is returned when a required binary is not in PATH
	ErrBinaryNotFound = errors.New("binary not found")

	// ErrTimeout is returned when an operation times out
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
