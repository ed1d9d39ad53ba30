// Package gemini provides an implementation of the generation.Summarizer
// interface backed by Google's Gemini API through the google.golang.org/genai
// client.
//
// The adapter renders the shared prompt template, applies the configured
// sampling parameters (temperature, top_p, stop sequences) and translates
// Gemini's responses into plain summary text. Responses blocked by safety
// filters and requests the API rejects as malformed or unauthorized are
// reported as permanent failures so the caller's retry loop gives up at once;
// everything else is left retryable.
package gemini
