// Command burrowd runs the Burrow message-queue HTTP service: the account/
// queue/message engine (in-memory or SQLite-backed), the reaper that
// expires/unhides messages on a timer, and the HTTP frontend that maps the
// wire protocol onto the engine.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/emonty/burrow/internal/config"
	"github.com/emonty/burrow/internal/database"
	apihttp "github.com/emonty/burrow/internal/http"
	"github.com/emonty/burrow/internal/http/handlers"
	httpmiddleware "github.com/emonty/burrow/internal/http/middleware"
	"github.com/emonty/burrow/internal/logging"
	"github.com/emonty/burrow/internal/observability"
	"github.com/emonty/burrow/internal/queue"
	"github.com/emonty/burrow/internal/queue/memstore"
	"github.com/emonty/burrow/internal/queue/reaper"
	"github.com/emonty/burrow/internal/queue/sqlstore"
	"github.com/emonty/burrow/internal/queue/waiter"
	sentryinit "github.com/emonty/burrow/internal/sentry"
)

func main() {
	var configPaths []string

	root := &cobra.Command{
		Use:   "burrowd",
		Short: "Run the Burrow message-queue HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPaths)
		},
	}
	root.Flags().StringArrayVar(&configPaths, "config", nil,
		"TOML config file to load (repeatable; later files override earlier ones; env vars always win)")

	if err := root.Execute(); err != nil {
		slog.Error("burrowd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPaths []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, path := range []string{"cmd/burrowd/.env", ".env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.LoadFiles(configPaths)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level)
	logger.Info("starting burrow", slog.String("env", cfg.AppEnv), slog.String("backend", cfg.Engine.Backend))

	sentryHandler, err := sentryinit.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, cfg.Sentry.Release)
	if err != nil {
		logger.Error("sentry init failed", slog.String("error", err.Error()))
	}
	if sentryinit.Enabled() {
		tags := map[string]string{"environment": cfg.Sentry.Environment, "app_env": cfg.AppEnv}
		sentryinit.CaptureLifecycleEvent("startup", tags, nil)
		defer func() {
			sentryinit.CaptureLifecycleEvent("shutdown", tags, nil)
			sentryinit.Flush(5 * time.Second)
		}()
	}

	metrics := observability.NewMetrics(cfg.Prometheus.Namespace, prometheus.DefaultRegisterer)

	engine, closeEngine, err := openEngine(ctx, cfg.Engine.Backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeEngine(); err != nil {
			logger.Error("engine close", slog.String("error", err.Error()))
		}
	}()

	waiters := waiter.New()

	r := reaper.New(engine, waiters, cfg.Reaper.Interval, logger)
	r.OnSweep(func(notified int, stats queue.CleanStats, sweepErr error) {
		metrics.ReaperSweeps.Inc()
		metrics.WaitersParked.Set(float64(waiters.Len()))
		if sweepErr != nil {
			return
		}
		if notified > 0 {
			metrics.ReaperNotified.Add(float64(notified))
		}
		if stats.Expired > 0 {
			metrics.ReaperExpired.Add(float64(stats.Expired))
		}
		if stats.Unhidden > 0 {
			metrics.ReaperUnhidden.Add(float64(stats.Unhidden))
		}
	})
	r.Start(ctx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		r.Stop(stopCtx)
	}()

	accountHandler := handlers.NewAccountHandler(engine)
	queueHandler := handlers.NewQueueHandler(engine)
	messageHandler := handlers.NewMessageHandler(engine, waiters, cfg.Attributes.DefaultTTL, cfg.Attributes.DefaultHide)
	healthHandler := handlers.NewHealthHandler(engine)
	healthHandler.SetMetrics(func(component, status string) {
		metrics.HealthChecks.WithLabelValues(component, status).Inc()
	})

	if len(configPaths) > 0 {
		watcher, err := config.WatchFiles(configPaths, logger, func(reloaded config.Config) {
			messageHandler.SetDefaults(reloaded.Attributes.DefaultTTL, reloaded.Attributes.DefaultHide)
		})
		if err != nil {
			logger.Warn("config watch disabled", slog.String("error", err.Error()))
		} else {
			defer watcher.Close()
		}
	}

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Logger:         logger,
		Metrics:        metrics,
		SentryHandler:  sentryHandler,
		AccountHandler: accountHandler,
		QueueHandler:   queueHandler,
		MessageHandler: messageHandler,
		HealthHandler:  healthHandler,
		RateLimiter:    httpmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	})

	server := apihttp.NewServer(
		router,
		cfg.HTTP.Addr,
		cfg.HTTP.ReadHeaderTimeout,
		cfg.HTTP.ReadTimeout,
		cfg.HTTP.WriteTimeout,
		cfg.HTTP.IdleTimeout,
		cfg.HTTP.MaxHeaderBytes,
		logger,
	)

	if err := server.Run(ctx); err != nil {
		logger.Error("http server stopped", slog.String("error", err.Error()))
	}

	logger.Info("shutdown complete")
	return nil
}

// openEngine builds the configured queue.Engine: "memory" (the default) or
// a "sqlite://path" DSN opened via internal/database, mirroring the
// original implementation's backend-URL convention where an empty path
// after the scheme means an in-memory SQLite database.
func openEngine(ctx context.Context, backend string) (queue.Engine, func() error, error) {
	if backend == "" || backend == "memory" {
		engine := memstore.New()
		return engine, engine.Close, nil
	}

	if !strings.HasPrefix(backend, "sqlite://") {
		return nil, nil, &unknownBackendError{backend: backend}
	}

	db, err := database.NewSQLiteDB(ctx, backend)
	if err != nil {
		return nil, nil, err
	}

	engine, err := sqlstore.Open(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return engine, engine.Close, nil
}

type unknownBackendError struct{ backend string }

func (e *unknownBackendError) Error() string {
	return "unknown engine backend: " + e.backend
}
