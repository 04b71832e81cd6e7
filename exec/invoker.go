package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/tool"
	"github.com/zero-day-ai/taskforge/toolerr"
)

// Invocation is one planned execution handed to the tool boundary.
type Invocation struct {
	ExecutionID string
	Tool        string
	Command     string
	Arguments   string
	Format      tool.OutputFormat
	Entities    []entity.Entity
}

// Output is what a tool run produced.
type Output struct {
	ExitCode int
	File     string
	Plain    string
	Error    string
	Duration time.Duration
	Findings []entity.Entity
}

// CommandInvoker runs tools as local processes.
type CommandInvoker struct {
	reportDir string
	timeout   time.Duration
	env       []string
	logger    *slog.Logger
	run       func(context.Context, Process) (*Exit, error)
}

// InvokerOption configures a CommandInvoker.
type InvokerOption func(*CommandInvoker)

// WithTimeout bounds every tool run.
func WithTimeout(d time.Duration) InvokerOption {
	return func(i *CommandInvoker) { i.timeout = d }
}

// WithEnv replaces the environment of tool processes.
func WithEnv(env []string) InvokerOption {
	return func(i *CommandInvoker) { i.env = env }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(i *CommandInvoker) { i.logger = logger }
}

// NewCommandInvoker creates an invoker that writes reports under reportDir.
func NewCommandInvoker(reportDir string, opts ...InvokerOption) *CommandInvoker {
	i := &CommandInvoker{
		reportDir: reportDir,
		logger:    slog.Default(),
		run:       Run,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// reportExtension picks the report file suffix for a format.
func reportExtension(f tool.OutputFormat) string {
	switch f {
	case tool.OutputNmapXML:
		return ".xml"
	case tool.OutputJSONLVulnerability:
		return ".jsonl"
	}
	return ".txt"
}

// Invoke runs the tool and parses its output. The {output} token in the
// arguments is replaced by a per-execution report path; when the tool
// wrote that report it is parsed, otherwise stdout is.
//
// A non-zero exit status is an EXECUTION_FAILED error; the returned Output
// is still populated so the caller can record it.
func (i *CommandInvoker) Invoke(ctx context.Context, inv Invocation) (*Output, error) {
	if err := os.MkdirAll(i.reportDir, 0o750); err != nil {
		return nil, toolerr.New(inv.Tool, "invoke", toolerr.ErrCodeExecutionFailed,
			"failed to create report directory").WithCause(err)
	}

	args := inv.Arguments
	report := ""
	if strings.Contains(args, tool.OutputToken) {
		report = filepath.Join(i.reportDir, inv.ExecutionID+reportExtension(inv.Format))
		args = strings.ReplaceAll(args, tool.OutputToken, report)
	}

	argv, err := SplitArgs(args)
	if err != nil {
		return nil, toolerr.New(inv.Tool, "invoke", toolerr.ErrCodeInvalidInput, err.Error()).WithCause(err)
	}

	i.logger.DebugContext(ctx, "running tool",
		"tool", inv.Tool,
		"execution_id", inv.ExecutionID,
		"command", inv.Command,
		"args", argv,
	)

	res, err := i.run(ctx, Process{
		Binary:  inv.Command,
		Args:    argv,
		Dir:     i.reportDir,
		Env:     i.env,
		Timeout: i.timeout,
	})
	out := &Output{}
	if res != nil {
		out.ExitCode = res.Code
		out.Plain = string(res.Stdout)
		out.Error = string(res.Stderr)
		out.Duration = res.Duration
	}
	if err != nil {
		var te *toolerr.Error
		if errors.As(err, &te) && te.Tool == inv.Command {
			te.Tool = inv.Tool
		}
		return out, err
	}
	if res.Code != 0 {
		return out, toolerr.New(inv.Tool, "invoke", toolerr.ErrCodeExecutionFailed,
			fmt.Sprintf("exit status %d", res.Code)).
			WithDetails(map[string]any{"exit_code": res.Code, "stderr": out.Error})
	}

	data := res.Stdout
	if report != "" {
		if content, err := os.ReadFile(report); err == nil {
			data = content
			out.File = report
		} else {
			i.logger.WarnContext(ctx, "tool report missing, parsing stdout",
				"tool", inv.Tool, "report", report, "error", err)
		}
	}

	findings, err := ParseOutput(inv.Format, data)
	if err != nil {
		return out, toolerr.New(inv.Tool, "parse", toolerr.ErrCodeParseError, err.Error()).WithCause(err)
	}
	out.Findings = findings
	return out, nil
}
