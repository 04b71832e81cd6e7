package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/taskforge"
	"github.com/zero-day-ai/taskforge/config"
	"github.com/zero-day-ai/taskforge/health"
	"github.com/zero-day-ai/taskforge/queue"
	"github.com/zero-day-ai/taskforge/tool"
	"github.com/zero-day-ai/taskforge/worker"
)

// checker returns the readiness check of a worker process. Missing tool
// binaries and an unreachable mail server only degrade it.
func checker(cfg *config.Config, q queue.Client, st *storage, tools *tool.Registry) func(context.Context) health.Status {
	commands := make([]string, 0, tools.Len())
	for _, name := range tools.Names() {
		if t, ok := tools.Get(name); ok {
			commands = append(commands, t.Command)
		}
	}

	return func(ctx context.Context) health.Status {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		results := []health.Result{
			health.Named("queue", health.Queue(ctx, q, worker.PoolExecutions)),
			health.Named("tools", health.Binaries(commands...)),
		}
		if st.ping != nil {
			results = append(results, health.Named("store", health.Ping(ctx, st.ping)))
		} else {
			results = append(results, health.Named("store", health.Degraded("in-memory store", nil)))
		}
		if cfg.Mail != nil {
			port := cfg.Mail.Port
			if port == 0 {
				port = 587
			}
			results = append(results, health.Named("mail",
				health.Soften(health.Network(ctx, cfg.Mail.Host, port))))
		}
		return health.Combine(results...)
	}
}

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the queue, store, tool binaries and mail server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tools, err := loadTools(a.cfg)
			if err != nil {
				return err
			}
			q, _, err := openQueue(a.cfg)
			if err != nil {
				return err
			}
			defer taskforge.CloseWithLog(q, a.logger, "queue client")
			st, err := openStore(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer st.release()

			s := checker(a.cfg, q, st, tools)(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(s); err != nil {
				return err
			}
			if s.IsUnhealthy() {
				return fmt.Errorf("%w: %s", errUnhealthy, s.Message)
			}
			return nil
		},
	}
}

var errUnhealthy = errors.New("unhealthy")
