package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPopper implements BRPop from a list of canned replies. The embedded
// Cmdable is nil; any other command panics.
type scriptedPopper struct {
	goredis.Cmdable

	mu      sync.Mutex
	replies []func(cmd *goredis.StringSliceCmd)
	calls   int
}

func (s *scriptedPopper) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *goredis.StringSliceCmd {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := goredis.NewStringSliceCmd(ctx, "brpop", keys[0], timeout)
	if s.calls < len(s.replies) {
		s.replies[s.calls](cmd)
	} else {
		cmd.SetErr(goredis.Nil)
	}
	s.calls++
	return cmd
}

func popError(cmd *goredis.StringSliceCmd) {
	cmd.SetErr(errors.New("read tcp 10.0.0.5:6379: connection reset by peer"))
}

func popPayload(payload string) func(cmd *goredis.StringSliceCmd) {
	return func(cmd *goredis.StringSliceCmd) {
		cmd.SetVal([]string{invokeKey("digest-processor"), payload})
	}
}

func TestConsumer_RecoversFromPopErrors(t *testing.T) {
	client := &scriptedPopper{replies: []func(*goredis.StringSliceCmd){
		popError,
		popError,
		popError,
		popPayload(`{"jobId":"job-1","input":"{}"}`),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled []string
	c := NewConsumer(client, "digest-processor", func(ctx context.Context, payload []byte) error {
		handled = append(handled, string(payload))
		cancel()
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, []string{`{"jobId":"job-1","input":"{}"}`}, handled)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
	assert.Equal(t, 4, client.calls)
}

func TestConsumer_BackoffIsCappedAndResets(t *testing.T) {
	replies := []func(*goredis.StringSliceCmd){}
	for i := 0; i < 7; i++ {
		replies = append(replies, popError)
	}
	replies = append(replies, popPayload("a"), popError)
	client := &scriptedPopper{replies: replies}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewConsumer(client, "digest-processor", func(ctx context.Context, payload []byte) error {
		return errors.New("handler failure is logged only")
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 8 {
			cancel()
		}
		return nil
	}

	require.NoError(t, c.Run(ctx))

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
		time.Second,
	}, delays)
}
