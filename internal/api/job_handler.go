package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/service"
)

// DefaultMaxBodyBytes caps the size of a submitted digest request.
const DefaultMaxBodyBytes = 1 << 20

// JobHandler handles digest job HTTP requests
type JobHandler struct {
	jobService   service.JobService
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobService service.JobService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &JobHandler{
		jobService:   jobService,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger.With(slog.String("component", "job_handler")),
	}
}

// SubmitJob handles POST /api/jobs requests. The raw body is handed to the
// worker unparsed; a malformed body shows up later as a failed job.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	body, err := shared.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		respondWithServiceError(w, r, err, msgJobCreation)
		return
	}

	jobID, err := h.jobService.Submit(r.Context(), string(body))
	if err != nil {
		respondWithServiceError(w, r, err, msgJobCreation)
		return
	}

	log.Info("digest job accepted", slog.String("job_id", jobID))

	// 202 Accepted since processing happens asynchronously
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitJobResponse{
		JobID:   jobID,
		Message: "Job started",
	})
}

// GetJobStatus handles GET /api/jobs/status?jobId=... requests.
func (h *JobHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	query := JobStatusQuery{JobID: r.URL.Query().Get("jobId")}
	if err := shared.ValidateRequest(query); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msgJobIDRequired, err)
		return
	}

	job, err := h.jobService.GetStatus(r.Context(), query.JobID)
	if err != nil {
		respondWithServiceError(w, r, err, msgStatusUnavailable)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToStatusResponse(job))
}
