package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/phrazzld/digest-api/internal/api"
	"github.com/phrazzld/digest-api/internal/api/shared"
)

// apiClient calls the digest API over HTTP.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// apiError is a non-success response from the server.
type apiError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *apiError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("server returned %d: %s (trace %s)", e.StatusCode, e.Message, e.TraceID)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func newAPIClient(baseURL string, httpClient *http.Client) *apiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Submit starts a digest job for the JSON body.
func (c *apiClient) Submit(ctx context.Context, body io.Reader) (*api.SubmitJobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out api.SubmitJobResponse
	if err := c.do(req, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status reads the current record of jobID.
func (c *apiClient) Status(ctx context.Context, jobID string) (*api.JobStatusResponse, error) {
	u := c.baseURL + "/api/jobs/status?" + url.Values{"jobId": {jobID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var out api.JobStatusResponse
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		apiErr := &apiError{StatusCode: resp.StatusCode, TraceID: resp.Header.Get(shared.TraceIDHeader)}
		var errResp shared.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
