package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job record
type JobStatus string

// Possible job status values
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Common validation errors for Job
var (
	ErrEmptyJobID         = errors.New("job ID cannot be empty")
	ErrInvalidJobStatus   = errors.New("invalid job status")
	ErrJobAlreadyFinished = errors.New("job already reached a terminal state")
)

// Job tracks the lifecycle of one submitted digest request.
//
// A job is created in the processing state and moves exactly once to either
// completed (Result set) or failed (Error set). Result holds the JSON-encoded
// digest and is nil until the job completes.
type Job struct {
	ID        string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	Result    *string   `json:"result"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob creates a new Job in the processing state with a freshly generated ID.
func NewJob() *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == "" {
		return ErrEmptyJobID
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	return nil
}

// IsTerminal reports whether the job has reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Complete moves a processing job to completed with the given encoded result.
func (j *Job) Complete(result string) error {
	if j.IsTerminal() {
		return ErrJobAlreadyFinished
	}

	j.Status = JobStatusCompleted
	j.Result = &result
	j.Error = ""
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail moves a processing job to failed with the given error message.
func (j *Job) Fail(message string) error {
	if j.IsTerminal() {
		return ErrJobAlreadyFinished
	}

	j.Status = JobStatusFailed
	j.Result = nil
	j.Error = message
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// ParseJobStatus converts a stored status string into a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(s)
	if !isValidJobStatus(status) {
		return "", ErrInvalidJobStatus
	}
	return status, nil
}
