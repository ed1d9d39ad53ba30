// Package retry provides a bounded exponential-backoff wrapper for fallible
// operations such as HTTP fetches and LLM calls.
//
// The delay starts at Policy.InitialDelay and doubles after every failed
// attempt, with no jitter and no cap. Sleeping blocks the calling goroutine.
// When the last attempt fails, the operation's own error is returned
// unchanged so callers can inspect it with errors.Is and errors.As.
package retry
