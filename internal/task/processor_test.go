package task

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/fetch"
	"github.com/phrazzld/digest-api/internal/generation"
	"github.com/phrazzld/digest-api/internal/platform/memory"
	"github.com/phrazzld/digest-api/internal/retry"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher implements fetch.Fetcher with a function field and counts
// calls per link.
type fakeFetcher struct {
	FetchFn func(ctx context.Context, link string) (*fetch.Page, error)
	calls   map[string]int
}

func (f *fakeFetcher) Fetch(ctx context.Context, link string) (*fetch.Page, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[link]++
	return f.FetchFn(ctx, link)
}

// pages serves a fixed page per link and 404 for anything else.
func pages(byLink map[string]string) *fakeFetcher {
	return &fakeFetcher{
		FetchFn: func(ctx context.Context, link string) (*fetch.Page, error) {
			body, ok := byLink[link]
			if !ok {
				return &fetch.Page{URL: link, StatusCode: http.StatusNotFound}, nil
			}
			return &fetch.Page{URL: link, StatusCode: http.StatusOK, Body: []byte(body)}, nil
		},
	}
}

func article(class, text string) string {
	return fmt.Sprintf(`<html><body><nav>menu</nav><div class=%q>%s</div></body></html>`, class, text)
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

type processorFixture struct {
	store   *memory.JobStore
	job     *domain.Job
	sleeper *recordingSleeper
}

func newFixture(t *testing.T) *processorFixture {
	t.Helper()

	st := memory.NewJobStore(discardLogger())
	job := domain.NewJob()
	require.NoError(t, st.Put(context.Background(), job))

	return &processorFixture{store: st, job: job, sleeper: &recordingSleeper{}}
}

func (f *processorFixture) processor(t *testing.T, fetcher fetch.Fetcher, summarizer generation.Summarizer) *Processor {
	t.Helper()

	policy := retry.Policy{MaxAttempts: 3, InitialDelay: time.Second}
	p, err := NewProcessor(f.store, fetcher, summarizer, ProcessorConfig{
		FetchPolicy:     policy,
		SummarizePolicy: policy,
		Sleeper:         f.sleeper.Sleep,
	}, discardLogger())
	require.NoError(t, err)
	return p
}

func (f *processorFixture) record(t *testing.T) *domain.Job {
	t.Helper()

	job, err := f.store.Get(context.Background(), f.job.ID)
	require.NoError(t, err)
	return job
}

func echoSummarizer() generation.Summarizer {
	return generation.SummarizerFunc(func(ctx context.Context, content string) (string, error) {
		return "summary of " + content, nil
	})
}

func input(items ...string) string {
	return `{"news":[` + strings.Join(items, ",") + `]}`
}

func item(link, class, category, index string) string {
	return fmt.Sprintf(`{"Link":%q,"contentClass":%q,"category":%q,"index":%s}`, link, class, category, index)
}

func TestProcessor_CompletesInInputOrder(t *testing.T) {
	f := newFixture(t)
	fetcher := pages(map[string]string{
		"https://news.test/a": article("story", "Alpha news."),
		"https://news.test/b": article("story", "Beta news."),
	})
	p := f.processor(t, fetcher, echoSummarizer())

	err := p.Process(context.Background(), f.job.ID, input(
		item("https://news.test/b", "story", "tech", "7"),
		item("https://news.test/a", "story", "world", `"lead"`),
	))
	require.NoError(t, err)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.Result)
	assert.JSONEq(t, `{"summaries":[
		{"category":"tech","index":7,"summary":"summary of Beta news."},
		{"category":"world","index":"lead","summary":"summary of Alpha news."}
	]}`, *job.Result)
	assert.Empty(t, f.sleeper.delays)
}

func TestProcessor_SkipsItemsThatCannotBeFetched(t *testing.T) {
	f := newFixture(t)
	fetcher := &fakeFetcher{
		FetchFn: func(ctx context.Context, link string) (*fetch.Page, error) {
			if link == "https://news.test/down" {
				return nil, fetch.ErrUpstreamUnavailable
			}
			return &fetch.Page{URL: link, StatusCode: http.StatusOK, Body: []byte(article("story", "Up."))}, nil
		},
	}
	p := f.processor(t, fetcher, echoSummarizer())

	err := p.Process(context.Background(), f.job.ID, input(
		item("https://news.test/down", "story", "a", "1"),
		item("https://news.test/up", "story", "b", "2"),
	))
	require.NoError(t, err)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{"summaries":[{"category":"b","index":2,"summary":"summary of Up."}]}`, *job.Result)
	assert.Equal(t, 3, fetcher.calls["https://news.test/down"])
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeper.delays)
}

func TestProcessor_SkipsNonSuccessStatusWithoutRetry(t *testing.T) {
	f := newFixture(t)
	fetcher := pages(map[string]string{})
	p := f.processor(t, fetcher, echoSummarizer())

	err := p.Process(context.Background(), f.job.ID, input(item("https://news.test/gone", "story", "a", "1")))
	require.NoError(t, err)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{"summaries":[]}`, *job.Result)
	assert.Equal(t, 1, fetcher.calls["https://news.test/gone"])
}

func TestProcessor_SkipsItemsWithoutMatchingContent(t *testing.T) {
	f := newFixture(t)
	fetcher := pages(map[string]string{
		"https://news.test/a": article("other", "Hidden."),
		"https://news.test/b": article("story", "Shown."),
	})
	p := f.processor(t, fetcher, echoSummarizer())

	err := p.Process(context.Background(), f.job.ID, input(
		item("https://news.test/a", "story", "a", "1"),
		item("https://news.test/b", "story", "b", "2"),
		item("https://news.test/b", "", "c", "3"),
	))
	require.NoError(t, err)

	job := f.record(t)
	assert.JSONEq(t, `{"summaries":[{"category":"b","index":2,"summary":"summary of Shown."}]}`, *job.Result)
}

func TestProcessor_EmptySummaryAfterExhaustedRetries(t *testing.T) {
	f := newFixture(t)
	fetcher := pages(map[string]string{"https://news.test/a": article("story", "Alpha.")})

	calls := 0
	summarizer := generation.SummarizerFunc(func(ctx context.Context, content string) (string, error) {
		calls++
		return "", generation.ErrGenerationFailed
	})
	p := f.processor(t, fetcher, summarizer)

	err := p.Process(context.Background(), f.job.ID, input(item("https://news.test/a", "story", "a", "1")))
	require.NoError(t, err)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{"summaries":[{"category":"a","index":1,"summary":""}]}`, *job.Result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeper.delays)
}

func TestProcessor_SummaryRecoversOnRetry(t *testing.T) {
	f := newFixture(t)
	fetcher := pages(map[string]string{"https://news.test/a": article("story", "Alpha.")})

	calls := 0
	summarizer := generation.SummarizerFunc(func(ctx context.Context, content string) (string, error) {
		calls++
		if calls < 3 {
			return "", generation.ErrGenerationFailed
		}
		return "third time lucky", nil
	})
	p := f.processor(t, fetcher, summarizer)

	require.NoError(t, p.Process(context.Background(), f.job.ID, input(item("https://news.test/a", "story", "a", "1"))))

	job := f.record(t)
	assert.JSONEq(t, `{"summaries":[{"category":"a","index":1,"summary":"third time lucky"}]}`, *job.Result)
}

func TestProcessor_PermanentSummaryErrorIsNotRetried(t *testing.T) {
	f := newFixture(t)
	fetcher := pages(map[string]string{"https://news.test/a": article("story", "Alpha.")})

	calls := 0
	summarizer := generation.SummarizerFunc(func(ctx context.Context, content string) (string, error) {
		calls++
		return "", retry.Permanent(generation.ErrContentBlocked)
	})
	p := f.processor(t, fetcher, summarizer)

	require.NoError(t, p.Process(context.Background(), f.job.ID, input(item("https://news.test/a", "story", "a", "1"))))

	assert.Equal(t, 1, calls)
	assert.Empty(t, f.sleeper.delays)
}

func TestProcessor_FailsOnUnparseableInput(t *testing.T) {
	f := newFixture(t)
	p := f.processor(t, pages(nil), echoSummarizer())

	err := p.Process(context.Background(), f.job.ID, "{not json")
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Nil(t, job.Result)
	assert.Contains(t, job.Error, "invalid format")
}

func TestProcessor_FailsOnPanic(t *testing.T) {
	f := newFixture(t)
	fetcher := pages(map[string]string{"https://news.test/a": article("story", "Alpha.")})
	summarizer := generation.SummarizerFunc(func(ctx context.Context, content string) (string, error) {
		panic("summarizer exploded")
	})
	p := f.processor(t, fetcher, summarizer)

	err := p.Process(context.Background(), f.job.ID, input(item("https://news.test/a", "story", "a", "1")))
	require.Error(t, err)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "summarizer exploded")
}

func TestProcessor_FailsWhenCancelled(t *testing.T) {
	f := newFixture(t)
	p := f.processor(t, pages(nil), echoSummarizer())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Process(ctx, f.job.ID, input(item("https://news.test/a", "story", "a", "1")))
	assert.ErrorIs(t, err, context.Canceled)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
}

func TestProcessor_RecordRemovedDuringProcessing(t *testing.T) {
	f := newFixture(t)
	p := f.processor(t, pages(nil), echoSummarizer())

	require.NoError(t, f.store.Delete(context.Background(), f.job.ID))

	err := p.Process(context.Background(), f.job.ID, input())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

// flakyFinishStore makes the first n Finish calls fail, n being failures.
type flakyFinishStore struct {
	*memory.JobStore
	failures int
	calls    int
}

func (s *flakyFinishStore) Finish(ctx context.Context, job *domain.Job) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("transient store outage")
	}
	return s.JobStore.Finish(ctx, job)
}

func TestProcessor_FailsWhenCompletionCannotBeRecorded(t *testing.T) {
	f := newFixture(t)
	st := &flakyFinishStore{JobStore: f.store, failures: 1}

	p, err := NewProcessor(st, pages(nil), echoSummarizer(), ProcessorConfig{Sleeper: f.sleeper.Sleep}, discardLogger())
	require.NoError(t, err)

	err = p.Process(context.Background(), f.job.ID, input())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transient store outage")
	assert.Equal(t, 2, st.calls)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "failed to record completed job")
	assert.Nil(t, job.Result)
}

func TestProcessor_CompletionWriteFailsTwice(t *testing.T) {
	f := newFixture(t)
	st := &flakyFinishStore{JobStore: f.store, failures: 2}

	p, err := NewProcessor(st, pages(nil), echoSummarizer(), ProcessorConfig{Sleeper: f.sleeper.Sleep}, discardLogger())
	require.NoError(t, err)

	err = p.Process(context.Background(), f.job.ID, input())
	assert.ErrorContains(t, err, "failed to record failed job")
	assert.Equal(t, 2, st.calls)
	assert.Equal(t, domain.JobStatusProcessing, f.record(t).Status)
}

func TestProcessor_AlreadyFinishedIsNotOverwritten(t *testing.T) {
	f := newFixture(t)
	p := f.processor(t, pages(nil), echoSummarizer())

	done := *f.job
	require.NoError(t, done.Fail("finished elsewhere"))
	require.NoError(t, f.store.Finish(context.Background(), &done))

	err := p.Process(context.Background(), f.job.ID, input())
	assert.ErrorIs(t, err, domain.ErrJobAlreadyFinished)

	job := f.record(t)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "finished elsewhere", job.Error)
}

func TestProcessor_Handler(t *testing.T) {
	f := newFixture(t)
	p := f.processor(t, pages(map[string]string{"https://news.test/a": article("story", "Alpha.")}), echoSummarizer())

	payload, err := Payload{JobID: f.job.ID, Input: input(item("https://news.test/a", "story", "a", "1"))}.Encode()
	require.NoError(t, err)

	require.NoError(t, p.Handler()(context.Background(), payload))
	assert.Equal(t, domain.JobStatusCompleted, f.record(t).Status)

	assert.Error(t, p.Handler()(context.Background(), []byte("garbage")))
}

func TestNewProcessor_RequiresDependencies(t *testing.T) {
	st := memory.NewJobStore(discardLogger())

	_, err := NewProcessor(nil, pages(nil), echoSummarizer(), ProcessorConfig{}, nil)
	assert.Error(t, err)
	_, err = NewProcessor(st, nil, echoSummarizer(), ProcessorConfig{}, nil)
	assert.Error(t, err)
	_, err = NewProcessor(st, pages(nil), nil, ProcessorConfig{}, nil)
	assert.Error(t, err)
}
