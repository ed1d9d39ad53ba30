package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/digest-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// The API layer maps these to HTTP status codes.
var (
	// ErrJobCreation indicates the processing record could not be written.
	// The worker is not invoked. API layer should map this to HTTP 500.
	ErrJobCreation = errors.New("job record creation failed")

	// ErrDispatch indicates the worker could not be invoked. The record that
	// was already written stays in processing.
	// API layer should map this to HTTP 500.
	ErrDispatch = errors.New("processing invocation failed")

	// ErrJobNotFound indicates that no record exists for the requested job ID.
	// API layer should map this to HTTP 404 Not Found.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobIDRequired indicates a status lookup without a job ID.
	// API layer should map this to HTTP 400 Bad Request.
	ErrJobIDRequired = errors.New("job ID is required")
)

// JobServiceError wraps errors from the job service with context.
type JobServiceError struct {
	// Operation is the operation that failed (e.g., "submit", "get_status")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for JobServiceError.
func (e *JobServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("job service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *JobServiceError) Unwrap() error {
	return e.Err
}

// NewJobServiceError creates a new JobServiceError.
// Store-level not-found errors are returned as ErrJobNotFound without wrapping.
func NewJobServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrJobNotFound) || errors.Is(err, store.ErrJobNotFound) {
		return ErrJobNotFound
	}

	return &JobServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
