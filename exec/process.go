// Package exec is the tool invocation boundary. Run starts a tool process
// and collects what it wrote; CommandInvoker turns a planned execution into
// a process run and parses the tool's output into findings.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/zero-day-ai/taskforge/toolerr"
)

// DefaultGracePeriod is how long a tool may keep running after it was
// interrupted before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Process describes one tool process.
type Process struct {
	// Binary is the name or path of the tool binary
	Binary string

	Args []string

	// Dir is the working directory; empty inherits the caller's
	Dir string

	// Env replaces the environment when non-nil
	Env []string

	// Timeout bounds the run; zero relies on ctx alone
	Timeout time.Duration

	Stdin io.Reader

	// GracePeriod overrides DefaultGracePeriod
	GracePeriod time.Duration
}

// Exit is what a finished process left behind.
type Exit struct {
	Stdout   []byte
	Stderr   []byte
	Code     int
	Duration time.Duration
}

// Run starts p and waits for it.
//
// On cancellation or timeout the process is interrupted first so scanners
// can flush partial reports, then killed after the grace period. A non-zero
// exit code is reported in Exit.Code, not as an error. Errors are
// *toolerr.Error values: BINARY_NOT_FOUND, TIMEOUT or EXECUTION_FAILED.
func Run(ctx context.Context, p Process) (*Exit, error) {
	if p.Binary == "" {
		return nil, toolerr.New("", "run", toolerr.ErrCodeInvalidInput, "binary is required")
	}
	path, err := exec.LookPath(p.Binary)
	if err != nil {
		return nil, toolerr.New(p.Binary, "run", toolerr.ErrCodeBinaryNotFound,
			fmt.Sprintf("binary %q not found in PATH", p.Binary)).WithCause(err)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = p.Env
	cmd.Stdin = p.Stdin
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = p.GracePeriod
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultGracePeriod
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	exit := &Exit{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return exit, nil
	}

	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return exit, toolerr.New(p.Binary, "run", toolerr.ErrCodeTimeout,
			fmt.Sprintf("timed out after %s", exit.Duration.Round(time.Millisecond))).WithCause(ctxErr)
	case ctxErr != nil:
		return exit, toolerr.New(p.Binary, "run", toolerr.ErrCodeExecutionFailed, "cancelled").WithCause(ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exit.Code = exitErr.ExitCode()
		return exit, nil
	}
	return exit, toolerr.New(p.Binary, "run", toolerr.ErrCodeExecutionFailed, "failed to run").WithCause(err)
}

// BinaryExists reports whether name resolves through PATH.
func BinaryExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
