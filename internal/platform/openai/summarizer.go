// Package openai provides an implementation of generation.Summarizer backed by
// the OpenAI chat completions API (or any endpoint compatible with it, selected
// through llm.openai_base_url).
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/generation"
	"github.com/phrazzld/digest-api/internal/retry"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAISummarizer implements generation.Summarizer with chat completions.
type OpenAISummarizer struct {
	client   openai.Client
	sampling generation.Sampling
	prompts  *generation.PromptBuilder
	logger   *slog.Logger
}

// Compile-time check to ensure OpenAISummarizer implements generation.Summarizer
var _ generation.Summarizer = (*OpenAISummarizer)(nil)

// NewOpenAISummarizer creates an OpenAISummarizer from the LLM configuration.
// Extra request options are applied after the configured ones.
func NewOpenAISummarizer(logger *slog.Logger, cfg config.LLMConfig, opts ...option.RequestOption) (*OpenAISummarizer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}

	prompts, err := generation.NewPromptBuilder(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	// Retries are owned by the caller's retry policy.
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if cfg.OpenAIBaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAISummarizer{
		client:   openai.NewClient(clientOpts...),
		sampling: generation.SamplingFromConfig(cfg, DefaultModel),
		prompts:  prompts,
		logger:   logger.With(slog.String("component", "openai_summarizer")),
	}, nil
}

// Summarize implements generation.Summarizer.
func (s *OpenAISummarizer) Summarize(ctx context.Context, content string) (string, error) {
	prompt, err := s.prompts.Build(content)
	if err != nil {
		return "", retry.Permanent(err)
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.sampling.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(s.sampling.Temperature),
		TopP:        openai.Float(s.sampling.TopP),
	}
	if len(s.sampling.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: s.sampling.StopSequences,
		}
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", generation.ErrInvalidResponse)
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" || choice.Message.Refusal != "" {
		return "", retry.Permanent(fmt.Errorf("%w: %s", generation.ErrContentBlocked, choice.Message.Refusal))
	}

	summary := strings.TrimSpace(choice.Message.Content)
	if summary == "" {
		return "", fmt.Errorf("%w: empty message content", generation.ErrInvalidResponse)
	}

	s.logger.DebugContext(ctx, "OpenAI summary generated",
		"model", s.sampling.Model,
		"summary_length", len(summary))

	return summary, nil
}

// classifyError wraps a client error and marks request errors that cannot
// succeed on retry as permanent.
func classifyError(err error) error {
	wrapped := fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return wrapped
	}

	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return retry.Permanent(wrapped)
	default:
		return wrapped
	}
}
