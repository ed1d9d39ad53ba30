package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultTarget is the name the digest worker registers under.
const DefaultTarget = "digest-processor"

// ErrUnknownTarget is returned when no handler is registered for a target.
var ErrUnknownTarget = errors.New("unknown invocation target")

// Invoker triggers a named worker asynchronously. Invoke returns once the
// invocation has been accepted; it never waits for the worker to run and
// gives the caller no handle to cancel it.
type Invoker interface {
	Invoke(ctx context.Context, target string, payload []byte) error
}

// Handler processes one invocation payload.
type Handler func(ctx context.Context, payload []byte) error

// Payload is the message passed from the job initiator to the worker.
type Payload struct {
	JobID string `json:"jobId"`
	Input string `json:"input"`
}

// Encode serializes the payload for an Invoker.
func (p Payload) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// DecodePayload parses an invocation payload.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode payload: %w", err)
	}
	if p.JobID == "" {
		return Payload{}, errors.New("payload is missing jobId")
	}
	return p, nil
}
