package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when summarization fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate summary")

	// ErrInvalidResponse is returned when the LLM response cannot be used
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when the summarizer configuration is invalid
	ErrInvalidConfig = errors.New("invalid summarizer configuration")

	// ErrEmptyContent is returned when there is no article text to summarize
	ErrEmptyContent = errors.New("content to summarize cannot be empty")
)
