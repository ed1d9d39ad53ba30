package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/digest-api/internal/api"
	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/bootstrap"
	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/fetch"
	"github.com/phrazzld/digest-api/internal/generation"
	"github.com/phrazzld/digest-api/internal/platform/memory"
	"github.com/phrazzld/digest-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 0, LogLevel: "info", ShutdownTimeoutSeconds: 5},
		Store:  config.StoreConfig{Backend: "memory"},
		Dispatch: config.DispatchConfig{
			Backend:     "inprocess",
			Target:      task.DefaultTarget,
			WorkerCount: 1,
			QueueSize:   4,
		},
		Fetch: config.FetchConfig{TimeoutSeconds: 5, MaxAttempts: 1, MaxBodyBytes: 1 << 20},
		LLM:   config.LLMConfig{Provider: "openai", MaxAttempts: 1},
	}
}

// newsSite serves one article and one missing page.
func newsSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/world/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><body>
<div class="story"><p>Leaders met in Geneva.</p></div>
<div class="sidebar">Subscribe now</div>
</body></html>`)
	})
	mux.HandleFunc("/gone", http.NotFound)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, site *httptest.Server) (*application, *httptest.Server) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	st := memory.NewJobStore(logger)

	summarizer := generation.SummarizerFunc(func(ctx context.Context, content string) (string, error) {
		return "Summary: " + strings.TrimSpace(content), nil
	})
	processor, err := task.NewProcessor(
		st,
		fetch.NewHTTPFetcher(cfg.Fetch, site.Client(), logger),
		summarizer,
		task.ProcessorConfigFrom(cfg.Fetch, cfg.LLM),
		logger,
	)
	require.NoError(t, err)

	app, err := newApplication(cfg, logger, &bootstrap.Backends{Store: st}, processor)
	require.NoError(t, err)

	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.cleanup(ctx)
	})
	return app, srv
}

func getStatus(t *testing.T, srv *httptest.Server, jobID string) (int, api.JobStatusResponse) {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/jobs/status?jobId=" + jobID)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body api.JobStatusResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestDigestJob_EndToEnd(t *testing.T) {
	site := newsSite(t)
	_, srv := newTestApp(t, site)

	input := fmt.Sprintf(`{"news":[
		{"Link":"%s/world/1","contentClass":"story","category":"world","index":0},
		{"Link":"%s/gone","contentClass":"story","category":"tech","index":1}
	]}`, site.URL, site.URL)

	resp, err := http.Post(srv.URL+"/api/jobs", "application/json", strings.NewReader(input))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(shared.TraceIDHeader))

	var submitted api.SubmitJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	require.NotEmpty(t, submitted.JobID)
	assert.Equal(t, "Job started", submitted.Message)

	var final api.JobStatusResponse
	require.Eventually(t, func() bool {
		code, body := getStatus(t, srv, submitted.JobID)
		if code != http.StatusOK || body.Status == string(domain.JobStatusProcessing) {
			return false
		}
		final = body
		return true
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, string(domain.JobStatusCompleted), final.Status)
	assert.Empty(t, final.Error)

	var result domain.DigestResult
	require.NoError(t, json.Unmarshal(final.Result, &result))
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, "world", result.Summaries[0].Category)
	assert.JSONEq(t, "0", string(result.Summaries[0].Index))
	assert.Equal(t, "Summary: Leaders met in Geneva.", result.Summaries[0].Summary)
}

func TestDigestJob_NewSubmissionClearsPreviousJobs(t *testing.T) {
	site := newsSite(t)
	_, srv := newTestApp(t, site)

	submit := func() string {
		resp, err := http.Post(srv.URL+"/api/jobs", "application/json", strings.NewReader(`{"news":[]}`))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var submitted api.SubmitJobResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
		return submitted.JobID
	}

	first := submit()
	require.Eventually(t, func() bool {
		_, body := getStatus(t, srv, first)
		return body.Status == string(domain.JobStatusCompleted)
	}, 5*time.Second, 20*time.Millisecond)

	second := submit()
	assert.NotEqual(t, first, second)

	code, _ := getStatus(t, srv, first)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDigestJob_UnparseableInputFails(t *testing.T) {
	site := newsSite(t)
	_, srv := newTestApp(t, site)

	resp, err := http.Post(srv.URL+"/api/jobs", "text/plain", strings.NewReader("not json"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var submitted api.SubmitJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))

	require.Eventually(t, func() bool {
		_, body := getStatus(t, srv, submitted.JobID)
		return body.Status == string(domain.JobStatusFailed) && body.Error != ""
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRouter_StatusErrorsAndHealth(t *testing.T) {
	_, srv := newTestApp(t, newsSite(t))

	resp, err := http.Get(srv.URL + "/api/jobs/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	code, _ := getStatus(t, srv, "does-not-exist")
	assert.Equal(t, http.StatusNotFound, code)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestNewApplication_DispatchValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backends := &bootstrap.Backends{Store: memory.NewJobStore(logger)}

	cfg := testConfig()
	_, err := newApplication(cfg, logger, backends, nil)
	assert.Error(t, err)

	cfg.Dispatch.Backend = "redis"
	_, err = newApplication(cfg, logger, backends, nil)
	assert.Error(t, err)

	cfg.Dispatch.Backend = "sqs"
	_, err = newApplication(cfg, logger, backends, nil)
	assert.Error(t, err)
}

func TestApplication_RunStopsOnContextCancel(t *testing.T) {
	site := newsSite(t)
	app, _ := newTestApp(t, site)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
