package generation

import (
	"context"

	"github.com/phrazzld/digest-api/internal/config"
)

// Summarizer produces a short summary of a news article.
type Summarizer interface {
	// Summarize returns the summary text for content. Implementations return
	// ErrEmptyContent for blank input and wrap provider failures in the errors
	// declared in this package. Errors that can never succeed on retry (for
	// instance ErrContentBlocked) are marked with retry.Permanent.
	Summarize(ctx context.Context, content string) (string, error)
}

// SummarizerFunc adapts an ordinary function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, content string) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, content string) (string, error) {
	return f(ctx, content)
}

// Sampling holds the decoding parameters shared by every provider.
type Sampling struct {
	Model         string
	Temperature   float64
	TopP          float64
	StopSequences []string
}

// SamplingFromConfig extracts the decoding parameters from cfg, substituting
// defaultModel when no model is configured.
func SamplingFromConfig(cfg config.LLMConfig, defaultModel string) Sampling {
	model := cfg.ModelName
	if model == "" {
		model = defaultModel
	}

	return Sampling{
		Model:         model,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		StopSequences: append([]string(nil), cfg.StopSequences...),
	}
}
