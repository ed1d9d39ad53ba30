package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/generation"
	"github.com/phrazzld/digest-api/internal/retry"
	"google.golang.org/genai"
)

// contentGenerator is the subset of genai.Models used by the summarizer.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiSummarizer implements generation.Summarizer with the Gemini API.
type GeminiSummarizer struct {
	logger   *slog.Logger
	sampling generation.Sampling
	prompts  *generation.PromptBuilder
	models   contentGenerator
}

// Compile-time check to ensure GeminiSummarizer implements generation.Summarizer
var _ generation.Summarizer = (*GeminiSummarizer)(nil)

// NewGeminiSummarizer creates a GeminiSummarizer from the LLM configuration.
func NewGeminiSummarizer(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiSummarizer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	logger = logger.With(slog.String("component", "gemini_summarizer"))

	if err := validateConfig(ctx, logger, cfg); err != nil {
		return nil, err
	}

	prompts, err := generation.NewPromptBuilder(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newSummarizer(logger, generation.SamplingFromConfig(cfg, DefaultModel), prompts, client.Models), nil
}

func newSummarizer(
	logger *slog.Logger,
	sampling generation.Sampling,
	prompts *generation.PromptBuilder,
	models contentGenerator,
) *GeminiSummarizer {
	return &GeminiSummarizer{
		logger:   logger,
		sampling: sampling,
		prompts:  prompts,
		models:   models,
	}
}

// Summarize implements generation.Summarizer.
func (s *GeminiSummarizer) Summarize(ctx context.Context, content string) (string, error) {
	prompt, err := s.prompts.Build(content)
	if err != nil {
		return "", retry.Permanent(err)
	}

	s.logger.DebugContext(ctx, "calling Gemini",
		"model", s.sampling.Model,
		"prompt_length", len(prompt))

	resp, err := s.models.GenerateContent(ctx, s.sampling.Model, genai.Text(prompt), s.generateConfig())
	if err != nil {
		return "", classifyError(err)
	}

	summary, err := responseText(resp)
	if err != nil {
		return "", err
	}

	s.logger.DebugContext(ctx, "Gemini summary generated",
		"model", s.sampling.Model,
		"summary_length", len(summary))

	return summary, nil
}

func (s *GeminiSummarizer) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: ptr(float32(s.sampling.Temperature)),
		TopP:        ptr(float32(s.sampling.TopP)),
	}
	if len(s.sampling.StopSequences) > 0 {
		cfg.StopSequences = s.sampling.StopSequences
	}
	return cfg
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", retry.Permanent(fmt.Errorf("%w: prompt blocked (%s)",
			generation.ErrContentBlocked, resp.PromptFeedback.BlockReason))
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", retry.Permanent(fmt.Errorf("%w: response blocked", generation.ErrContentBlocked))
	}

	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}

	return text, nil
}

func ptr[T any](v T) *T {
	return &v
}
