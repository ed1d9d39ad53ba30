package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/service"
)

// Client-facing error messages.
const (
	msgJobIDRequired     = "jobId is required"
	msgJobNotFound       = "Job not found"
	msgStatusUnavailable = "Error retrieving job status"
	msgJobCreation       = "Error creating job record"
	msgDispatch          = "Error invoking processing function"
	msgBodyTooLarge      = "Request body too large"
	msgUnexpected        = "An unexpected error occurred"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrJobIDRequired):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound

	case errors.Is(err, shared.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge

	// Store and dispatch failures, and anything unknown
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type, or fallback for errors without a dedicated message.
func GetSafeErrorMessage(err error, fallback string) string {
	if fallback == "" {
		fallback = msgUnexpected
	}

	switch {
	case err == nil:
		return fallback
	case errors.Is(err, service.ErrJobIDRequired):
		return msgJobIDRequired
	case errors.Is(err, service.ErrJobNotFound):
		return msgJobNotFound
	case errors.Is(err, service.ErrJobCreation):
		return msgJobCreation
	case errors.Is(err, service.ErrDispatch):
		return msgDispatch
	case errors.Is(err, shared.ErrBodyTooLarge):
		return msgBodyTooLarge
	default:
		return fallback
	}
}

// respondWithServiceError writes the status and safe message for err and
// logs the details.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err, fallback), err)
}
