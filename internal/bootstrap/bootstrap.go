// Package bootstrap builds the backends and workers shared by cmd/server and
// cmd/worker from the loaded configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/fetch"
	"github.com/phrazzld/digest-api/internal/generation"
	"github.com/phrazzld/digest-api/internal/platform/gemini"
	"github.com/phrazzld/digest-api/internal/platform/memory"
	"github.com/phrazzld/digest-api/internal/platform/openai"
	"github.com/phrazzld/digest-api/internal/platform/postgres"
	"github.com/phrazzld/digest-api/internal/platform/redis"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// ErrSplitMemoryStore is returned when jobs would be dispatched to another
// process that cannot see an in-memory store.
var ErrSplitMemoryStore = errors.New("the memory store cannot be combined with redis dispatch")

// Backends holds the opened job store and the connections behind it.
type Backends struct {
	Store store.JobStore

	// DB is set for the postgres store.
	DB *sql.DB

	// Redis is set when the store or the dispatcher uses Redis.
	Redis goredis.UniversalClient
}

// OpenBackends opens the configured job store, running migrations for
// Postgres, and connects to Redis if the store or dispatcher needs it.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	if cfg.Store.Backend == "memory" && cfg.Dispatch.Backend == "redis" {
		return nil, ErrSplitMemoryStore
	}

	b := &Backends{}
	var err error

	switch cfg.Store.Backend {
	case "memory":
		b.Store = memory.NewJobStore(logger)

	case "postgres":
		if b.DB, err = postgres.Open(ctx, cfg.Store.DatabaseURL); err != nil {
			return nil, err
		}
		if err = postgres.Migrate(ctx, b.DB, logger); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Store = postgres.NewPostgresJobStore(b.DB, logger)

	case "redis":
		if b.Redis, err = redis.NewClient(ctx, cfg.Store); err != nil {
			return nil, err
		}
		b.Store = redis.NewJobStore(b.Redis, logger)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Dispatch.Backend == "redis" && b.Redis == nil {
		if b.Redis, err = redis.NewClient(ctx, cfg.Store); err != nil {
			_ = b.Close()
			return nil, err
		}
	}

	logger.Info("job store ready",
		"store_backend", cfg.Store.Backend,
		"dispatch_backend", cfg.Dispatch.Backend)
	return b, nil
}

// Close releases every open connection.
func (b *Backends) Close() error {
	var errs []error
	if b.DB != nil {
		errs = append(errs, b.DB.Close())
	}
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	return errors.Join(errs...)
}

// NewSummarizer creates the summarizer for the configured LLM provider.
func NewSummarizer(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Summarizer, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewGeminiSummarizer(ctx, logger, cfg)
	case "openai":
		return openai.NewOpenAISummarizer(logger, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

// NewProcessor creates the digest worker on st with an HTTP fetcher and the
// configured summarizer.
func NewProcessor(ctx context.Context, cfg *config.Config, st store.JobStore, logger *slog.Logger) (*task.Processor, error) {
	summarizer, err := NewSummarizer(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}

	fetcher := fetch.NewHTTPFetcher(cfg.Fetch, nil, logger)

	return task.NewProcessor(st, fetcher, summarizer, task.ProcessorConfigFrom(cfg.Fetch, cfg.LLM), logger)
}
