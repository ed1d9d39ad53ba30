package store

import (
	"context"

	"github.com/phrazzld/digest-api/internal/domain"
)

// JobStore defines the key-value operations the job lifecycle relies on.
// Records are keyed by job ID. Implementations must make Finish atomic with
// respect to the stored status so a record reaches a terminal state at most
// once.
type JobStore interface {
	// Put creates or replaces the record for job.ID.
	// Returns ErrInvalidEntity if the job fails validation.
	Put(ctx context.Context, job *domain.Job) error

	// Get retrieves a job record by ID.
	// Returns ErrJobNotFound if no record exists.
	Get(ctx context.Context, jobID string) (*domain.Job, error)

	// ListIDs scans the store and returns the IDs of every record.
	ListIDs(ctx context.Context) ([]string, error)

	// Delete removes the record for jobID. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, jobID string) error

	// Finish persists the terminal status, result and error of job, provided
	// the stored record is still processing.
	// Returns ErrJobNotFound if the record is gone, or
	// domain.ErrJobAlreadyFinished if it already reached a terminal state.
	Finish(ctx context.Context, job *domain.Job) error
}

// ClearJobs deletes every record in s. It stops at the first failure.
func ClearJobs(ctx context.Context, s JobStore) (int, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return 0, NewStoreError("job", "scan", "failed to list job records", err)
	}

	for i, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return i, NewStoreError("job", "delete", "failed to delete job "+id, err)
		}
	}

	return len(ids), nil
}
