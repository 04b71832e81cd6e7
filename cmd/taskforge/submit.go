package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/taskforge"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/tool"
)

// engine opens the configured store and queue and builds an Engine on
// them. close releases both.
func (a *app) engine(ctx context.Context) (engine *taskforge.Engine, release func(), err error) {
	tools, err := loadTools(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	q, _, err := openQueue(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		taskforge.CloseWithLog(q, a.logger, "queue client")
		return nil, nil, err
	}
	closeAll := func() {
		st.release()
		taskforge.CloseWithLog(q, a.logger, "queue client")
	}

	engine, err = taskforge.New(tools, st, q, taskforge.WithLogger(a.logger))
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return engine, closeAll, nil
}

func newSubmitCommand(a *app) *cobra.Command {
	var (
		project   string
		target    string
		toolName  string
		intensity string
		executor  string
		wordlists []string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Plan a task against a stored target and enqueue its executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := tool.ParseIntensity(intensity)
			if err != nil {
				return err
			}
			engine, closeAll, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			task := execution.NewTask(project, target, toolName, level, executor, wordlists...)
			plan, err := engine.Submit(cmd.Context(), task)
			if plan != nil {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "task %s: %d execution(s)\n", task.ID, len(plan.Executions))
				for _, ex := range plan.Executions {
					fmt.Fprintf(out, "  %s %s\n", ex.ID, ex.Arguments)
				}
				if plan.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: some executions were dropped: %v\n", plan.Err)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project ID (required)")
	cmd.Flags().StringVar(&target, "target", "", "target ID (required)")
	cmd.Flags().StringVar(&toolName, "tool", "", "tool name (required)")
	cmd.Flags().StringVar(&intensity, "intensity", "normal", "intensity level")
	cmd.Flags().StringVar(&executor, "executor", "", "ID of the user running the task")
	cmd.Flags().StringSliceVar(&wordlists, "wordlist", nil, "wordlist IDs")
	for _, name := range []string{"project", "target", "tool"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newCancelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel EXECUTION_ID...",
		Short: "Cancel executions no worker has started",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeAll, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			var failed int
			for _, id := range args {
				if err := engine.Cancel(cmd.Context(), id); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s cancelled\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d execution(s) could not be cancelled", failed, len(args))
			}
			return nil
		},
	}
}
