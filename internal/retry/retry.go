package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Default policy values.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
)

// Policy controls how many times an operation is attempted and how long to
// wait before the first retry.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	// Values below 1 fall back to DefaultMaxAttempts.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. Each later wait is
	// twice the previous one. Negative values fall back to DefaultInitialDelay.
	InitialDelay time.Duration
}

// DefaultPolicy returns three attempts starting at a one second delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	return p
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type settings struct {
	name   string
	logger *slog.Logger
	sleep  Sleeper
}

// Option customizes a retry loop.
type Option func(*settings)

// WithName sets the operation name used in log messages.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithLogger sets the logger that receives retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSleeper replaces the sleep function, mainly for tests.
func WithSleeper(sleep Sleeper) Option {
	return func(s *settings) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		name:   "operation",
		logger: slog.Default(),
		sleep:  ContextSleep,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it immediately without retrying.
// The wrapper is removed before the error reaches the caller.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds or the policy's attempts are exhausted.
//
// After each failure except the last, Do logs a warning, sleeps for the
// current delay and doubles it. The error of the final attempt is returned as
// is. If ctx ends while sleeping, the last operation error is returned joined
// with the context error.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	p := policy.normalized()
	s := newSettings(opts)

	delay := p.InitialDelay
	var zero T

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			s.logger.WarnContext(ctx, "permanent failure, not retrying",
				"operation", s.name,
				"attempt", attempt,
				"error", perm.err)
			return zero, perm.err
		}

		if attempt >= p.MaxAttempts {
			return zero, err
		}

		s.logger.WarnContext(ctx, "operation failed, retrying",
			"operation", s.name,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", delay.String(),
			"error", err)

		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			return zero, errors.Join(err, sleepErr)
		}
		delay *= 2
	}
}

// Wrap returns op decorated with the retry policy. Every call of the returned
// function starts with a fresh attempt counter and delay.
func Wrap[A, T any](policy Policy, op func(ctx context.Context, arg A) (T, error), opts ...Option) func(ctx context.Context, arg A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		return Do(ctx, policy, func(ctx context.Context) (T, error) {
			return op(ctx, arg)
		}, opts...)
	}
}
