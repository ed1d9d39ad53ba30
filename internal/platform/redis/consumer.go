package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/redact"
	"github.com/phrazzld/digest-api/internal/retry"
	"github.com/phrazzld/digest-api/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultPollTimeout bounds each blocking pop so the consumer notices
// cancellation.
const DefaultPollTimeout = 5 * time.Second

// Backoff applied after a failed pop. It doubles per consecutive failure and
// resets once a pop succeeds.
const (
	DefaultErrorBackoff    = time.Second
	DefaultMaxErrorBackoff = 30 * time.Second
)

// Consumer pops invocations for one target and runs a handler for each.
type Consumer struct {
	client      goredis.Cmdable
	target      string
	handler     task.Handler
	pollTimeout time.Duration
	logger      *slog.Logger

	errorBackoff    time.Duration
	maxErrorBackoff time.Duration
	sleep           retry.Sleeper
}

// NewConsumer creates a Consumer for target.
func NewConsumer(client goredis.Cmdable, target string, handler task.Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		client:      client,
		target:      target,
		handler:     handler,
		pollTimeout: DefaultPollTimeout,

		errorBackoff:    DefaultErrorBackoff,
		maxErrorBackoff: DefaultMaxErrorBackoff,
		sleep:           retry.ContextSleep,

		logger: logger.With(
			slog.String("component", "redis_consumer"),
			slog.String("target", target),
		),
	}
}

// Run pops and handles invocations until ctx is cancelled. Pop errors are
// logged and retried with backoff, and handler errors are logged; neither
// stops the loop. Run returns nil once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer started")

	backoff := c.errorBackoff
	for {
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "consumer stopped")
			return nil
		}

		payload, err := c.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			c.logger.WarnContext(ctx, "failed to pop invocation, backing off",
				slog.String("error", redact.Error(err)),
				slog.String("delay", backoff.String()))
			_ = c.sleep(ctx, backoff)
			backoff = min(backoff*2, c.maxErrorBackoff)
			continue
		}
		backoff = c.errorBackoff

		if payload == nil {
			continue
		}

		if err := c.handler(ctx, payload); err != nil {
			c.logger.ErrorContext(ctx, "invocation handler failed",
				slog.String("error", err.Error()))
		}
	}
}

// next blocks for up to pollTimeout and returns nil when nothing arrived.
func (c *Consumer) next(ctx context.Context) ([]byte, error) {
	res, err := c.client.BRPop(ctx, c.pollTimeout, invokeKey(c.target)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop invocation: %w", err)
	}

	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}
	return []byte(res[1]), nil
}
