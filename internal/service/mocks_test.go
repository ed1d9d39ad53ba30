package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
)

// failingStore wraps a store and lets tests override single operations.
type failingStore struct {
	store.JobStore
	PutFn     func(ctx context.Context, job *domain.Job) error
	GetFn     func(ctx context.Context, jobID string) (*domain.Job, error)
	ListIDsFn func(ctx context.Context) ([]string, error)
}

func (f *failingStore) Put(ctx context.Context, job *domain.Job) error {
	if f.PutFn != nil {
		return f.PutFn(ctx, job)
	}
	return f.JobStore.Put(ctx, job)
}

func (f *failingStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	if f.GetFn != nil {
		return f.GetFn(ctx, jobID)
	}
	return f.JobStore.Get(ctx, jobID)
}

func (f *failingStore) ListIDs(ctx context.Context) ([]string, error) {
	if f.ListIDsFn != nil {
		return f.ListIDsFn(ctx)
	}
	return f.JobStore.ListIDs(ctx)
}

type invocationRecord struct {
	target  string
	payload []byte
}

// mockInvoker records invocations and returns err.
type mockInvoker struct {
	mu    sync.Mutex
	calls []invocationRecord
	err   error
}

func (m *mockInvoker) Invoke(ctx context.Context, target string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, invocationRecord{target: target, payload: payload})
	return m.err
}

func (m *mockInvoker) Calls() []invocationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]invocationRecord(nil), m.calls...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
