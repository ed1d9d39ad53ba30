package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/digest-api/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to the Redis server named in cfg and verifies the
// connection with a ping.
func NewClient(ctx context.Context, cfg config.StoreConfig) (goredis.UniversalClient, error) {
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, err)
	}

	return client, nil
}
