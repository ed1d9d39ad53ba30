package gemini

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/digest-api/internal/generation"
	"github.com/phrazzld/digest-api/internal/retry"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// apiStatus extracts the HTTP status of a Gemini API error, if any.
func apiStatus(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

// classifyError wraps a client error in generation.ErrGenerationFailed and
// marks request errors that cannot succeed on retry as permanent.
func classifyError(err error) error {
	wrapped := fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)

	code, ok := apiStatus(err)
	if !ok {
		return wrapped
	}

	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return retry.Permanent(wrapped)
	default:
		return wrapped
	}
}
