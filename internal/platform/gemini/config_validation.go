package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/generation"
)

// validateConfig checks the settings the Gemini adapter needs before a client
// is created.
func validateConfig(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) error {
	if cfg.GeminiAPIKey == "" {
		logger.ErrorContext(ctx, "missing Gemini API key",
			"error", "GeminiAPIKey is empty")
		return fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f outside [0, 2]", generation.ErrInvalidConfig, cfg.Temperature)
	}

	if cfg.TopP < 0 || cfg.TopP > 1 {
		return fmt.Errorf("%w: top_p %.2f outside [0, 1]", generation.ErrInvalidConfig, cfg.TopP)
	}

	if cfg.ModelName == "" {
		logger.InfoContext(ctx, "no model configured, using default",
			"model", DefaultModel)
	}

	return nil
}
