package api

import (
	"encoding/json"

	"github.com/phrazzld/digest-api/internal/domain"
)

// SubmitJobResponse is returned by POST /api/jobs.
type SubmitJobResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// JobStatusQuery holds the query parameters of GET /api/jobs/status.
type JobStatusQuery struct {
	JobID string `validate:"required"`
}

// JobStatusResponse is returned by GET /api/jobs/status. Result is the
// stored digest embedded as JSON, or null while the job is processing.
type JobStatusResponse struct {
	JobID  string          `json:"jobId"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// jobToStatusResponse converts a domain.Job to a JobStatusResponse. A stored
// result that is not valid JSON is returned as a JSON string.
func jobToStatusResponse(job *domain.Job) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:  job.ID,
		Status: string(job.Status),
		Error:  job.Error,
	}

	if job.Result != nil {
		if json.Valid([]byte(*job.Result)) {
			resp.Result = json.RawMessage(*job.Result)
		} else if encoded, err := json.Marshal(*job.Result); err == nil {
			resp.Result = encoded
		}
	}

	return resp
}
