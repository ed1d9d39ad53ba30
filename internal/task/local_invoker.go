package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/digest-api/internal/config"
)

// Common errors returned by the LocalInvoker
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

type invocation struct {
	target  string
	payload []byte
}

// LocalInvoker implements Invoker with a buffered queue drained by a pool of
// worker goroutines in the same process.
//
// Handlers run on the invoker's own context rather than the caller's, so a
// finished HTTP request does not cancel the work it triggered.
type LocalInvoker struct {
	mu       sync.Mutex
	handlers map[string]Handler
	queue    chan invocation
	closed   bool

	workerCount int
	wg          sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

// Compile-time check to ensure LocalInvoker implements Invoker
var _ Invoker = (*LocalInvoker)(nil)

// NewLocalInvoker creates a LocalInvoker sized by cfg. Workers are not
// started until Start is called.
func NewLocalInvoker(cfg config.DispatchConfig, logger *slog.Logger) *LocalInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "local_invoker"))

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.WorkerCount,
			"default_count", 1)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &LocalInvoker{
		handlers:    make(map[string]Handler),
		queue:       make(chan invocation, queueSize),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Register binds handler to target, replacing any previous handler.
func (l *LocalInvoker) Register(target string, handler Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[target] = handler
}

// Invoke implements Invoker. It fails fast when the queue is full.
func (l *LocalInvoker) Invoke(ctx context.Context, target string, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrQueueClosed
	}
	if _, ok := l.handlers[target]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}

	select {
	case l.queue <- invocation{target: target, payload: payload}:
		l.logger.DebugContext(ctx, "invocation enqueued",
			"target", target,
			"queue_len", len(l.queue),
			"queue_cap", cap(l.queue))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(l.queue))
	}
}

// Start launches the worker goroutines.
func (l *LocalInvoker) Start() {
	for i := 0; i < l.workerCount; i++ {
		l.wg.Add(1)
		go l.worker(i)
	}
	l.logger.Info("worker pool started", "worker_count", l.workerCount)
}

// Stop closes the queue and waits for queued invocations to drain. If ctx
// ends first, running handlers are cancelled and Stop returns ctx.Err().
func (l *LocalInvoker) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		l.cancel()
		l.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		l.cancel()
		<-drained
		l.logger.Warn("worker pool stopped before the queue drained")
		return ctx.Err()
	}
}

func (l *LocalInvoker) worker(id int) {
	defer l.wg.Done()

	l.logger.Debug("starting worker", "worker_id", id)
	for inv := range l.queue {
		l.handle(id, inv)
	}
	l.logger.Debug("task channel closed, stopping worker", "worker_id", id)
}

func (l *LocalInvoker) handle(workerID int, inv invocation) {
	logger := l.logger.With("target", inv.target, "worker_id", workerID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("invocation handler panicked", "panic", fmt.Sprint(r))
		}
	}()

	l.mu.Lock()
	handler := l.handlers[inv.target]
	l.mu.Unlock()

	if err := handler(l.ctx, inv.payload); err != nil {
		logger.Error("invocation handler failed", "error", err)
	}
}
