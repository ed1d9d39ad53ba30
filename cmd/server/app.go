package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/bootstrap"
	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/platform/redis"
	"github.com/phrazzld/digest-api/internal/service"
	"github.com/phrazzld/digest-api/internal/task"
)

// application holds the shared dependencies of the server so they can be
// wired once and released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	backends *bootstrap.Backends

	// localInvoker is nil when jobs are dispatched through Redis.
	localInvoker *task.LocalInvoker

	jobService service.JobService
}

// newApplication wires the job service to the configured dispatcher. For
// in-process dispatch processor is registered as the target handler and the
// worker pool is started; for redis dispatch it is ignored.
func newApplication(
	cfg *config.Config,
	logger *slog.Logger,
	backends *bootstrap.Backends,
	processor *task.Processor,
) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		backends: backends,
	}

	var invoker task.Invoker
	switch cfg.Dispatch.Backend {
	case "inprocess":
		if processor == nil {
			return nil, errors.New("in-process dispatch requires a processor")
		}
		app.localInvoker = task.NewLocalInvoker(cfg.Dispatch, logger)
		app.localInvoker.Register(cfg.Dispatch.Target, processor.Handler())
		app.localInvoker.Start()
		invoker = app.localInvoker

	case "redis":
		if backends.Redis == nil {
			return nil, errors.New("redis dispatch requires a redis client")
		}
		invoker = redis.NewInvoker(backends.Redis, logger)

	default:
		return nil, fmt.Errorf("unknown dispatch backend %q", cfg.Dispatch.Backend)
	}

	var err error
	app.jobService, err = service.NewJobService(backends.Store, invoker, cfg.Dispatch.Target, logger)
	if err != nil {
		if app.localInvoker != nil {
			_ = app.localInvoker.Stop(context.Background())
		}
		return nil, fmt.Errorf("failed to create job service: %w", err)
	}

	logger.Info("Application initialized successfully",
		"dispatch_backend", cfg.Dispatch.Backend,
		"target", cfg.Dispatch.Target)
	return app, nil
}

// Run serves HTTP until ctx is cancelled or a shutdown signal arrives.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup stops the worker pool, letting queued jobs finish until ctx ends,
// and closes the backends.
func (app *application) cleanup(ctx context.Context) {
	if app.localInvoker != nil {
		if err := app.localInvoker.Stop(ctx); err != nil {
			app.logger.Warn("Worker pool did not drain before shutdown deadline", "error", err)
		}
	}

	if app.backends != nil {
		if err := app.backends.Close(); err != nil {
			app.logger.Error("Error closing backends", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
