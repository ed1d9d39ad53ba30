//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/phrazzld/digest-api/internal/platform/postgres"
	"github.com/redis/go-redis/v9"
)

// Environment variables pointing at externally managed services.
const (
	DatabaseURLEnv = "DIGEST_TEST_DATABASE_URL"
	RedisAddrEnv   = "DIGEST_TEST_REDIS_ADDR"
)

const containerMaxWait = 90 * time.Second

// Postgres returns a migrated database with an empty jobs table.
func Postgres(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv(DatabaseURLEnv)
	if dbURL == "" {
		pool := newPool(t)
		resource := run(t, pool, &dockertest.RunOptions{
			Repository: "postgres",
			Tag:        "16-alpine",
			Env: []string{
				"POSTGRES_USER=digest",
				"POSTGRES_PASSWORD=digest",
				"POSTGRES_DB=digest_test",
			},
		})
		dbURL = fmt.Sprintf("postgres://digest:digest@%s/digest_test?sslmode=disable",
			resource.GetHostPort("5432/tcp"))

		if err := pool.Retry(func() error {
			db, err := sql.Open("pgx", dbURL)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return db.Ping()
		}); err != nil {
			t.Fatalf("postgres container never became ready: %v", err)
		}
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := postgres.Migrate(ctx, db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	if _, err := db.ExecContext(ctx, `TRUNCATE jobs`); err != nil {
		t.Fatalf("failed to truncate jobs: %v", err)
	}

	return db
}

// Redis returns a client connected to an empty database.
func Redis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv(RedisAddrEnv)
	if addr == "" {
		pool := newPool(t)
		resource := run(t, pool, &dockertest.RunOptions{
			Repository: "redis",
			Tag:        "7-alpine",
		})
		addr = resource.GetHostPort("6379/tcp")

		if err := pool.Retry(func() error {
			c := redis.NewClient(&redis.Options{Addr: addr})
			defer func() { _ = c.Close() }()
			return c.Ping(context.Background()).Err()
		}); err != nil {
			t.Fatalf("redis container never became ready: %v", err)
		}
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}

	return client
}

func newPool(t *testing.T) *dockertest.Pool {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable, skipping integration test: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable, skipping integration test: %v", err)
	}
	pool.MaxWait = containerMaxWait
	return pool
}

func run(t *testing.T, pool *dockertest.Pool, opts *dockertest.RunOptions) *dockertest.Resource {
	t.Helper()

	resource, err := pool.RunWithOptions(opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("failed to start %s container: %v", opts.Repository, err)
	}
	_ = resource.Expire(uint(containerMaxWait.Seconds() * 2))

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("failed to purge %s container: %v", opts.Repository, err)
		}
	})

	return resource
}
