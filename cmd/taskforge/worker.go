package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/taskforge"
	"github.com/zero-day-ai/taskforge/exec"
	"github.com/zero-day-ai/taskforge/metrics"
	"github.com/zero-day-ai/taskforge/tracing"
	"github.com/zero-day-ai/taskforge/worker"
)

func newWorkerCommand(a *app) *cobra.Command {
	var (
		pools       []string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the execution and findings worker pools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range pools {
				if p != worker.PoolExecutions && p != worker.PoolFindings {
					return fmt.Errorf("unknown pool %q (want %s or %s)", p, worker.PoolExecutions, worker.PoolFindings)
				}
			}
			if metricsAddr == "" {
				metricsAddr = a.cfg.Metrics.GetAddr()
			}
			return a.runWorkers(cmd.Context(), pools, metricsAddr)
		},
	}
	cmd.Flags().StringSliceVar(&pools, "pool", []string{worker.PoolExecutions, worker.PoolFindings},
		"pools to run")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func (a *app) runWorkers(ctx context.Context, pools []string, metricsAddr string) error {
	cfg, logger := a.cfg, a.logger

	tp := tracing.NewTracerProvider("taskforge-worker", nil, logger)
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down tracer provider", "error", err)
		}
	}()

	q, redis, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer taskforge.CloseWithLog(q, logger, "queue client")

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.release()

	m := metrics.New()
	workers := cfg.Workers
	base := worker.Options{
		PopTimeout:        workers.GetPopTimeout(),
		HeartbeatInterval: workers.GetHeartbeatInterval(),
		ShutdownTimeout:   workers.GetShutdownTimeout(),
		Logger:            logger,
		Metrics:           m,
	}

	tools, err := loadTools(cfg)
	if err != nil {
		return err
	}
	check := checker(cfg, q, st, tools)
	if s := check(ctx); !s.IsHealthy() {
		logger.Warn("starting with failing health checks", "status", s.State, "message", s.Message, "details", s.Details)
	}

	g, gctx := errgroup.WithContext(ctx)

	if slices.Contains(pools, worker.PoolExecutions) {
		invoker := exec.NewCommandInvoker(cfg.Tools.GetReportDir(),
			exec.WithTimeout(cfg.Tools.GetTimeout()),
			exec.WithLogger(logger))

		opts := base
		opts.Concurrency = workers.GetExecutionConcurrency()
		pool := worker.NewExecutionPool(q, st, tools, invoker, opts)
		g.Go(func() error { return pool.Run(gctx) })
	}

	if slices.Contains(pools, worker.PoolFindings) {
		var enricher worker.Enricher
		e, err := newEnricher(cfg, redis, logger)
		if err != nil {
			return err
		}
		if e != nil {
			enricher = e
		}
		notifier, err := newNotifier(cfg, logger)
		if err != nil {
			return err
		}

		opts := base
		opts.Concurrency = workers.GetFindingsConcurrency()
		pool := worker.NewFindingsPool(q, st, enricher, notifier, opts)
		g.Go(func() error { return pool.Run(gctx) })
	}

	if metricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, metricsAddr, m, check, logger) })
	}

	logger.Info("workers started",
		"pools", pools,
		"queue", cfg.Queue.GetBackend(),
		"version", Version)
	err = g.Wait()
	logger.Info("workers stopped")
	return err
}
