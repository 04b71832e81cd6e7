// Package toolerr provides the structured error type shared by the planning,
// execution, enrichment and notification stages.
//
// # Error Codes
//
//   - ErrCodeConfiguration: a tool declaration cannot be served (unknown input
//     kind, invalid template, unsupported selection). Fatal, never retried.
//   - ErrCodeInvalidInput: a task or template value is invalid for one branch.
//   - ErrCodeExecutionFailed: the external tool invocation failed.
//   - ErrCodeBinaryNotFound: the tool binary is not installed.
//   - ErrCodeTimeout: an operation timed out.
//   - ErrCodeParseError: tool output could not be parsed.
//   - ErrCodeNetworkError: a remote service could not be reached.
//   - ErrCodeEnrichment: a CVE lookup failed after retries.
//   - ErrCodeNotification: a notification could not be delivered.
//
// # Usage
//
//	err := toolerr.New("dirsearch", "plan", toolerr.ErrCodeConfiguration,
//	    "input kind \"domain\" is not supported").
//	    WithDetails(map[string]any{"input": "target"})
//
//	if toolerr.IsConfiguration(err) {
//	    // abort planning for the whole task
//	}
//
// The Error type implements Unwrap, Is and As so it composes with the
// standard errors package.
package toolerr
