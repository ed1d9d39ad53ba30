// Package main implements the entry point for the digest API server, which
// accepts news digest jobs and reports their status while a worker fetches
// and summarizes the linked articles.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/phrazzld/digest-api/internal/bootstrap"
	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/task"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("Failed to run digest API server: %v", err)
	}
}

// run loads configuration, initializes dependencies and serves until a
// shutdown signal arrives.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Store.Backend,
		"dispatch_backend", cfg.Dispatch.Backend,
		"llm_provider", cfg.LLM.Provider)

	backends, err := bootstrap.OpenBackends(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}

	// With redis dispatch the processor runs in cmd/worker instead.
	var processor *task.Processor
	if cfg.Dispatch.Backend == "inprocess" {
		processor, err = bootstrap.NewProcessor(ctx, cfg, backends.Store, appLogger)
		if err != nil {
			_ = backends.Close()
			return err
		}
	}

	app, err := newApplication(cfg, appLogger, backends, processor)
	if err != nil {
		_ = backends.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
