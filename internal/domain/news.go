package domain

import (
	"encoding/json"
	"fmt"
)

// NewsItem is one entry of a digest request. The JSON field names match the
// payload produced by the newsletter front end.
type NewsItem struct {
	Link         string          `json:"Link"`
	ContentClass string          `json:"contentClass"`
	Category     string          `json:"category"`
	Index        json.RawMessage `json:"index,omitempty"`
}

// DigestRequest is the decoded worker input.
type DigestRequest struct {
	News []NewsItem `json:"news"`
}

// Summary is the per-item output of the worker. Index is echoed back verbatim
// from the request so the client can place the summary in its layout.
type Summary struct {
	Category string          `json:"category"`
	Index    json.RawMessage `json:"index"`
	Summary  string          `json:"summary"`
}

// DigestResult is the value stored in a completed job's result field.
type DigestResult struct {
	Summaries []Summary `json:"summaries"`
}

// ParseDigestRequest decodes the JSON-encoded worker input.
func ParseDigestRequest(input string) (*DigestRequest, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	var req DigestRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	return &req, nil
}

// Encode serializes the result into the string form kept in the job record.
func (r DigestResult) Encode() (string, error) {
	if r.Summaries == nil {
		r.Summaries = []Summary{}
	}

	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode digest result: %w", err)
	}
	return string(data), nil
}
