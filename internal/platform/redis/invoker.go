package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// Invoker implements task.Invoker by pushing payloads onto a Redis list per
// target. A Consumer running in another process pops and handles them.
type Invoker struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// Compile-time check to ensure Invoker implements task.Invoker
var _ task.Invoker = (*Invoker)(nil)

// NewInvoker creates an Invoker on client.
func NewInvoker(client goredis.Cmdable, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Invoker{
		client: client,
		logger: logger.With(slog.String("component", "redis_invoker")),
	}
}

// Invoke implements task.Invoker.
func (i *Invoker) Invoke(ctx context.Context, target string, payload []byte) error {
	depth, err := i.client.LPush(ctx, invokeKey(target), payload).Result()
	if err != nil {
		return fmt.Errorf("failed to enqueue invocation for %s: %w", target, err)
	}

	i.logger.DebugContext(ctx, "invocation enqueued",
		slog.String("target", target),
		slog.Int64("queue_depth", depth))
	return nil
}
