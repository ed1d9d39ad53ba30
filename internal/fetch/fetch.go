// Package fetch retrieves news pages over HTTP.
//
// A Fetcher distinguishes failures worth retrying (transport errors, 5xx and
// 429 responses) from ordinary non-success responses. The former are returned
// as errors so a retry wrapper can act on them; the latter are returned as a
// Page carrying the status code and left for the caller to skip.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/retry"
)

// Errors returned by HTTPFetcher.
var (
	// ErrInvalidURL is returned for links that cannot be requested at all.
	// It is marked permanent so retry loops stop immediately.
	ErrInvalidURL = errors.New("invalid news link")

	// ErrUpstreamUnavailable is returned for 5xx and 429 responses.
	ErrUpstreamUnavailable = errors.New("news site unavailable")
)

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Truncated  bool
}

// OK reports whether the page was served with 200.
func (p *Page) OK() bool {
	return p.StatusCode == http.StatusOK
}

// Fetcher retrieves the document at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (*Page, error)
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
}

// Compile-time check to ensure HTTPFetcher implements Fetcher
var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher from the fetch configuration.
// A nil client gets a fresh http.Client with the configured timeout.
func NewHTTPFetcher(cfg config.FetchConfig, client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	client.Timeout = timeout

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 5 << 20
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	return &HTTPFetcher{
		client:       client,
		userAgent:    userAgent,
		maxBodyBytes: maxBody,
		logger:       logger.With(slog.String("component", "http_fetcher")),
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, link string) (*Page, error) {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, retry.Permanent(fmt.Errorf("%w: %q", ErrInvalidURL, link))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: %v", ErrInvalidURL, err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstreamUnavailable, link, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", link, err)
	}

	page := &Page{
		URL:        link,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
	if int64(len(body)) > f.maxBodyBytes {
		page.Body = body[:f.maxBodyBytes]
		page.Truncated = true
		f.logger.WarnContext(ctx, "page body truncated",
			slog.String("url", link),
			slog.Int64("max_bytes", f.maxBodyBytes))
	}

	f.logger.DebugContext(ctx, "page fetched",
		slog.String("url", link),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(page.Body)))

	return page, nil
}
