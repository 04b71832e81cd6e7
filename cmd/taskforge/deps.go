package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/zero-day-ai/taskforge/config"
	"github.com/zero-day-ai/taskforge/enrich"
	"github.com/zero-day-ai/taskforge/health"
	"github.com/zero-day-ai/taskforge/metrics"
	"github.com/zero-day-ai/taskforge/notify"
	"github.com/zero-day-ai/taskforge/nvd"
	"github.com/zero-day-ai/taskforge/queue"
	"github.com/zero-day-ai/taskforge/store"
	"github.com/zero-day-ai/taskforge/tool"
)

// openQueue connects the configured backend. redis is non-nil only for the
// Redis backend, for components that need the raw connection.
func openQueue(cfg *config.Config) (q queue.Client, redis *queue.RedisClient, err error) {
	switch cfg.Queue.GetBackend() {
	case config.QueueRedis:
		rc, err := queue.NewRedisClient(queue.RedisOptions{URL: cfg.Queue.GetRedisURL()})
		if err != nil {
			return nil, nil, err
		}
		return rc, rc, nil
	case config.QueueNATS:
		nc, err := queue.NewNATSClient(queue.NATSOptions{
			URL:    cfg.Queue.GetNATSURL(),
			Stream: cfg.Queue.GetStream(),
		})
		if err != nil {
			return nil, nil, err
		}
		return nc, nil, nil
	default:
		return queue.NewMemoryClient(), nil, nil
	}
}

// storage is the opened store with what health checks and shutdown need.
type storage struct {
	store.Store

	// ping is nil for the in-memory store.
	ping    health.Pinger
	release func()
}

// openStore connects to Postgres when a DSN is configured and falls back
// to the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	dsn := cfg.Postgres.GetDSN()
	if dsn == "" {
		logger.Warn("no postgres dsn configured, using the in-memory store")
		return &storage{Store: store.NewMemory(), release: func() {}}, nil
	}

	pg, pool, err := store.Connect(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return &storage{Store: pg, ping: pool, release: pool.Close}, nil
}

func loadTools(cfg *config.Config) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	if err := reg.LoadFile(cfg.Tools.GetCatalog()); err != nil {
		return nil, err
	}
	return reg, nil
}

// newEnricher returns nil when enrichment is disabled.
func newEnricher(cfg *config.Config, redis *queue.RedisClient, logger *slog.Logger) (*enrich.Enricher, error) {
	if !cfg.NVD.Enabled() {
		return nil, nil
	}

	var limiter nvd.Limiter = rate.NewLimiter(rate.Limit(cfg.NVD.GetRateLimit()), cfg.NVD.GetRateLimit())
	if cfg.NVD.SharedLimiter {
		if redis == nil {
			return nil, errors.New("nvd.shared_limiter requires the redis queue backend")
		}
		rl, err := queue.NewRedisLimiter(redis, "nvd", cfg.NVD.GetRateLimit(), time.Second)
		if err != nil {
			return nil, err
		}
		limiter = rl
	}

	policy := nvd.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.NVD.GetMaxAttempts()

	opts := []nvd.Option{
		nvd.WithLimiter(limiter),
		nvd.WithRetryPolicy(policy),
		nvd.WithLogger(logger),
	}
	if cfg.NVD != nil && cfg.NVD.BaseURL != "" {
		opts = append(opts, nvd.WithBaseURL(cfg.NVD.BaseURL))
	}
	return enrich.New(nvd.NewClient(opts...), logger), nil
}

// newNotifier registers a sender for every configured channel.
func newNotifier(cfg *config.Config, logger *slog.Logger) (*notify.Dispatcher, error) {
	opts := []notify.DispatcherOption{notify.WithLogger(logger)}
	if cfg.Mail != nil {
		mail, err := notify.NewMailSender(*cfg.Mail)
		if err != nil {
			return nil, fmt.Errorf("invalid mail configuration: %w", err)
		}
		opts = append(opts, notify.WithSender(notify.ChannelMail, mail))
	}
	if cfg.Telegram != nil {
		tg, err := notify.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram configuration: %w", err)
		}
		opts = append(opts, notify.WithSender(notify.ChannelTelegram, tg))
	}
	return notify.NewDispatcher(opts...), nil
}

// serveMetrics exposes m, and check when set, on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, check func(context.Context) health.Status, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if check != nil {
		mux.Handle("/healthz", health.Handler(check))
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
