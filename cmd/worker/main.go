// Package main implements the digest worker, which consumes processing
// invocations from Redis and runs the digest processor for each job. It is
// used when dispatch.backend is redis; with in-process dispatch the server
// runs the processor itself.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/digest-api/internal/bootstrap"
	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/platform/redis"
	"golang.org/x/sync/errgroup"
)

// errNotRedisDispatch is returned when the worker is started for a
// configuration that dispatches jobs in process.
var errNotRedisDispatch = errors.New("the worker requires dispatch.backend=redis")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("Digest worker failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Dispatch.Backend != "redis" {
		return errNotRedisDispatch
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	backends, err := bootstrap.OpenBackends(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			appLogger.Error("Error closing backends", "error", err)
		}
	}()

	processor, err := bootstrap.NewProcessor(ctx, cfg, backends.Store, appLogger)
	if err != nil {
		return err
	}

	appLogger.Info("Digest worker starting",
		"target", cfg.Dispatch.Target,
		"worker_count", cfg.Dispatch.WorkerCount)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Dispatch.WorkerCount; i++ {
		consumer := redis.NewConsumer(backends.Redis, cfg.Dispatch.Target, processor.Handler(),
			appLogger.With("worker_id", i))
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		return err
	}

	appLogger.Info("Digest worker stopped")
	return nil
}
