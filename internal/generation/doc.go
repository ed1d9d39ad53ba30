// Package generation defines the boundary between the digest worker and the
// external language model services that summarize article text. Provider
// adapters live under internal/platform (gemini, openai); this package holds
// the Summarizer interface, the shared prompt template and the errors those
// adapters translate their failures into.
package generation
