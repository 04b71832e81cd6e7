// Package execution defines tasks, the executions planned from them and the
// execution status state machine.
//
//	requested -> running -> completed | error | skipped
//	requested -> cancelled | skipped
//
// Cancellation is only possible while an execution is still requested.
package execution
