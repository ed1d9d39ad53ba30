package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/extract"
	"github.com/phrazzld/digest-api/internal/fetch"
	"github.com/phrazzld/digest-api/internal/generation"
	"github.com/phrazzld/digest-api/internal/redact"
	"github.com/phrazzld/digest-api/internal/retry"
	"github.com/phrazzld/digest-api/internal/store"
)

// ProcessorConfig holds the retry policies for the two external calls.
type ProcessorConfig struct {
	FetchPolicy     retry.Policy
	SummarizePolicy retry.Policy

	// Sleeper replaces the retry wait. Nil uses retry.ContextSleep.
	Sleeper retry.Sleeper
}

// ProcessorConfigFrom builds a ProcessorConfig from the application config.
func ProcessorConfigFrom(fetchCfg config.FetchConfig, llmCfg config.LLMConfig) ProcessorConfig {
	return ProcessorConfig{
		FetchPolicy: retry.Policy{
			MaxAttempts:  fetchCfg.MaxAttempts,
			InitialDelay: time.Duration(fetchCfg.InitialDelayMs) * time.Millisecond,
		},
		SummarizePolicy: retry.Policy{
			MaxAttempts:  llmCfg.MaxAttempts,
			InitialDelay: time.Duration(llmCfg.InitialDelayMs) * time.Millisecond,
		},
	}
}

// Processor runs the digest worker: it fetches every news item, extracts the
// article text, summarizes it and writes the terminal job status.
type Processor struct {
	store     store.JobStore
	fetch     func(ctx context.Context, link string) (*fetch.Page, error)
	summarize func(ctx context.Context, content string) (string, error)
	logger    *slog.Logger
}

// NewProcessor creates a Processor. Fetch and summarize calls are each
// wrapped in their own retry policy.
func NewProcessor(
	jobStore store.JobStore,
	fetcher fetch.Fetcher,
	summarizer generation.Summarizer,
	cfg ProcessorConfig,
	logger *slog.Logger,
) (*Processor, error) {
	if jobStore == nil {
		return nil, errors.New("job store cannot be nil")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}
	if summarizer == nil {
		return nil, errors.New("summarizer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "digest_processor"))

	return &Processor{
		store: jobStore,
		fetch: retry.Wrap(cfg.FetchPolicy, fetcher.Fetch,
			retry.WithName("fetch"),
			retry.WithLogger(logger),
			retry.WithSleeper(cfg.Sleeper)),
		summarize: retry.Wrap(cfg.SummarizePolicy, summarizer.Summarize,
			retry.WithName("summarize"),
			retry.WithLogger(logger),
			retry.WithSleeper(cfg.Sleeper)),
		logger: logger,
	}, nil
}

// Handler adapts the processor to an invocation handler that decodes a
// Payload.
func (p *Processor) Handler() Handler {
	return func(ctx context.Context, data []byte) error {
		payload, err := DecodePayload(data)
		if err != nil {
			return err
		}
		return p.Process(ctx, payload.JobID, payload.Input)
	}
}

// Process runs one job. Items are handled strictly in order; an item that
// cannot be fetched or has no matching content is skipped, and a summary
// that cannot be produced is left empty. The job is marked failed only when
// the input cannot be parsed, the result cannot be encoded or processing
// panics.
func (p *Processor) Process(ctx context.Context, jobID, input string) (err error) {
	logger := p.logger.With("job_id", jobID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "digest processing panicked", "panic", fmt.Sprint(r))
			err = p.fail(ctx, logger, jobID, fmt.Errorf("processing panicked: %v", r))
		}
	}()

	req, err := domain.ParseDigestRequest(input)
	if err != nil {
		return p.fail(ctx, logger, jobID, err)
	}

	logger.InfoContext(ctx, "processing digest", "item_count", len(req.News))

	summaries := make([]domain.Summary, 0, len(req.News))
	for i, item := range req.News {
		if ctx.Err() != nil {
			return p.fail(ctx, logger, jobID, fmt.Errorf("processing interrupted: %w", ctx.Err()))
		}

		summary, ok := p.processItem(ctx, logger.With("item", i, "link", redact.String(item.Link)), item)
		if ok {
			summaries = append(summaries, summary)
		}
	}

	encoded, err := domain.DigestResult{Summaries: summaries}.Encode()
	if err != nil {
		return p.fail(ctx, logger, jobID, err)
	}

	job := &domain.Job{ID: jobID, Status: domain.JobStatusProcessing}
	if err := job.Complete(encoded); err != nil {
		return err
	}
	if err := p.store.Finish(context.WithoutCancel(ctx), job); err != nil {
		logger.ErrorContext(ctx, "failed to record completed job", "error", redact.Error(err))
		err = fmt.Errorf("failed to record completed job %s: %w", jobID, err)

		// The record is gone or already terminal; there is nothing left to mark.
		if errors.Is(err, store.ErrJobNotFound) || errors.Is(err, domain.ErrJobAlreadyFinished) {
			return err
		}
		return p.fail(ctx, logger, jobID, err)
	}

	logger.InfoContext(ctx, "digest completed",
		"item_count", len(req.News),
		"summary_count", len(summaries),
		"duration", time.Since(start).String())
	return nil
}

func (p *Processor) processItem(ctx context.Context, logger *slog.Logger, item domain.NewsItem) (domain.Summary, bool) {
	page, err := p.fetch(ctx, item.Link)
	if err != nil {
		logger.WarnContext(ctx, "failed to fetch news item, skipping", "error", redact.Error(err))
		return domain.Summary{}, false
	}
	if !page.OK() {
		logger.WarnContext(ctx, "news item returned non-success status, skipping", "status", page.StatusCode)
		return domain.Summary{}, false
	}

	text, matches, err := extract.Text(page.Body, item.ContentClass)
	if err != nil {
		logger.WarnContext(ctx, "no content found for news item, skipping",
			"content_class", item.ContentClass,
			"error", err)
		return domain.Summary{}, false
	}

	summary, err := p.summarize(ctx, text)
	if err != nil {
		logger.WarnContext(ctx, "failed to summarize news item, using empty summary", "error", redact.Error(err))
		summary = ""
	}

	logger.DebugContext(ctx, "news item processed",
		"matches", matches,
		"text_length", len(text),
		"summary_length", len(summary))

	return domain.Summary{
		Category: item.Category,
		Index:    item.Index,
		Summary:  summary,
	}, true
}

// fail records cause as the job's error and returns it, joined with the
// store error if the record could not be written.
func (p *Processor) fail(ctx context.Context, logger *slog.Logger, jobID string, cause error) error {
	logger.ErrorContext(ctx, "digest processing failed", "error", redact.Error(cause))

	job := &domain.Job{ID: jobID, Status: domain.JobStatusProcessing}
	if err := job.Fail(redact.Error(cause)); err != nil {
		return errors.Join(cause, err)
	}

	if err := p.store.Finish(context.WithoutCancel(ctx), job); err != nil {
		logger.ErrorContext(ctx, "failed to record failed job", "error", redact.Error(err))
		return errors.Join(cause, fmt.Errorf("failed to record failed job %s: %w", jobID, err))
	}

	return cause
}
