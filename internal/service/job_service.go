package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/redact"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/task"
)

// JobService provides the digest job lifecycle operations.
type JobService interface {
	// Submit clears every existing job record, creates a new record in the
	// processing state and triggers the worker with body as its input. It
	// returns the new job ID without waiting for the worker.
	Submit(ctx context.Context, body string) (string, error)

	// GetStatus returns the record for jobID.
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
}

// jobServiceImpl implements the JobService interface
type jobServiceImpl struct {
	store   store.JobStore
	invoker task.Invoker
	target  string
	logger  *slog.Logger
}

// NewJobService creates a new JobService that triggers target through invoker.
// It returns an error if any of the required dependencies are nil.
func NewJobService(
	jobStore store.JobStore,
	invoker task.Invoker,
	target string,
	logger *slog.Logger,
) (JobService, error) {
	if jobStore == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "jobStore cannot be nil"}
	}
	if invoker == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "invoker cannot be nil"}
	}
	if target == "" {
		target = task.DefaultTarget
	}
	if logger == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "logger cannot be nil"}
	}

	return &jobServiceImpl{
		store:   jobStore,
		invoker: invoker,
		target:  target,
		logger:  logger.With(slog.String("component", "job_service")),
	}, nil
}

// Submit implements JobService.
func (s *jobServiceImpl) Submit(ctx context.Context, body string) (string, error) {
	cleared, err := store.ClearJobs(ctx, s.store)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clear previous jobs",
			"cleared", cleared,
			"error", redact.Error(err))
		return "", fmt.Errorf("%w: %w", ErrJobCreation, err)
	}

	job := domain.NewJob()
	log := s.logger.With("job_id", job.ID)

	if err := s.store.Put(ctx, job); err != nil {
		log.ErrorContext(ctx, "failed to create job record", "error", redact.Error(err))
		return "", fmt.Errorf("%w: %w", ErrJobCreation, err)
	}

	payload, err := task.Payload{JobID: job.ID, Input: body}.Encode()
	if err == nil {
		err = s.invoker.Invoke(ctx, s.target, payload)
	}
	if err != nil {
		// The record stays in processing; nothing will finish it.
		log.ErrorContext(ctx, "failed to invoke processing",
			"target", s.target,
			"error", redact.Error(err))
		return "", fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	log.InfoContext(ctx, "job started",
		"target", s.target,
		"cleared_jobs", cleared,
		"input_bytes", len(body))
	return job.ID, nil
}

// GetStatus implements JobService.
func (s *jobServiceImpl) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}

	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, store.ErrJobNotFound) {
			s.logger.ErrorContext(ctx, "failed to read job record",
				"job_id", jobID,
				"error", redact.Error(err))
		}
		return nil, NewJobServiceError("get_status", "failed to read job record", err)
	}

	return job, nil
}
