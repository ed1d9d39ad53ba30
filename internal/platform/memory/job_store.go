// Package memory provides a process-local implementation of store.JobStore.
// It backs single-process deployments and tests; records do not survive a
// restart.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
)

// JobStore keeps job records in a mutex-guarded map.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[string]domain.Job
	logger *slog.Logger
}

// Compile-time check to ensure JobStore implements store.JobStore
var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates an empty JobStore.
func NewJobStore(logger *slog.Logger) *JobStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &JobStore{
		jobs:   make(map[string]domain.Job),
		logger: logger.With(slog.String("component", "memory_job_store")),
	}
}

// Put implements store.JobStore.
func (s *JobStore) Put(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = cloneJob(job)
	s.logger.DebugContext(ctx, "job record stored",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)))
	return nil
}

// Get implements store.JobStore.
func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}

	out := cloneJob(&job)
	return &out, nil
}

// ListIDs implements store.JobStore. IDs are returned sorted.
func (s *JobStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements store.JobStore.
func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, jobID)
	return nil
}

// Finish implements store.JobStore.
func (s *JobStore) Finish(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.ID]
	if !ok {
		return store.ErrJobNotFound
	}
	if current.IsTerminal() {
		return domain.ErrJobAlreadyFinished
	}

	current.Status = job.Status
	current.Result = cloneString(job.Result)
	current.Error = job.Error
	current.UpdatedAt = time.Now().UTC()
	s.jobs[job.ID] = current

	s.logger.DebugContext(ctx, "job record finished",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)))
	return nil
}

func cloneJob(job *domain.Job) domain.Job {
	out := *job
	out.Result = cloneString(job.Result)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
