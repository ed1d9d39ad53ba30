package service

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/memory"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const digestInput = `{"news":[{"Link":"https://news.test/a","contentClass":"story","category":"world","index":0}]}`

func newTestService(t *testing.T, st store.JobStore, inv task.Invoker) JobService {
	t.Helper()

	svc, err := NewJobService(st, inv, "digest-processor", testLogger())
	require.NoError(t, err)
	return svc
}

func TestJobService_Submit(t *testing.T) {
	ctx := context.Background()
	st := memory.NewJobStore(testLogger())
	inv := &mockInvoker{}
	svc := newTestService(t, st, inv)

	jobID, err := svc.Submit(ctx, digestInput)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := st.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Nil(t, job.Result)

	calls := inv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "digest-processor", calls[0].target)

	payload, err := task.DecodePayload(calls[0].payload)
	require.NoError(t, err)
	assert.Equal(t, jobID, payload.JobID)
	assert.Equal(t, digestInput, payload.Input)
}

func TestJobService_SubmitLeavesExactlyOneRecord(t *testing.T) {
	ctx := context.Background()
	st := memory.NewJobStore(testLogger())
	svc := newTestService(t, st, &mockInvoker{})

	old := domain.NewJob()
	require.NoError(t, old.Fail("stale"))
	require.NoError(t, st.Put(ctx, old))

	first, err := svc.Submit(ctx, digestInput)
	require.NoError(t, err)
	second, err := svc.Submit(ctx, digestInput)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	ids, err := st.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second}, ids)

	_, err = svc.GetStatus(ctx, first)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobService_SubmitStoreFailure(t *testing.T) {
	ctx := context.Background()
	inv := &mockInvoker{}
	st := &failingStore{
		JobStore: memory.NewJobStore(testLogger()),
		PutFn: func(ctx context.Context, job *domain.Job) error {
			return errors.New("connection refused")
		},
	}
	svc := newTestService(t, st, inv)

	_, err := svc.Submit(ctx, digestInput)
	assert.ErrorIs(t, err, ErrJobCreation)
	assert.Empty(t, inv.Calls(), "worker must not be invoked without a record")
}

func TestJobService_SubmitClearFailure(t *testing.T) {
	inv := &mockInvoker{}
	st := &failingStore{
		JobStore: memory.NewJobStore(testLogger()),
		ListIDsFn: func(ctx context.Context) ([]string, error) {
			return nil, errors.New("scan failed")
		},
	}
	svc := newTestService(t, st, inv)

	_, err := svc.Submit(context.Background(), digestInput)
	assert.ErrorIs(t, err, ErrJobCreation)
	assert.Empty(t, inv.Calls())
}

func TestJobService_SubmitDispatchFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.NewJobStore(testLogger())
	inv := &mockInvoker{err: task.ErrQueueFull}
	svc := newTestService(t, st, inv)

	_, err := svc.Submit(ctx, digestInput)
	assert.ErrorIs(t, err, ErrDispatch)
	assert.ErrorIs(t, err, task.ErrQueueFull)

	// The record written before the invocation stays in processing.
	ids, err := st.ListIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	job, err := st.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
}

func TestJobService_GetStatus(t *testing.T) {
	ctx := context.Background()
	st := memory.NewJobStore(testLogger())
	svc := newTestService(t, st, &mockInvoker{})

	job := domain.NewJob()
	require.NoError(t, st.Put(ctx, job))

	t.Run("processing", func(t *testing.T) {
		got, err := svc.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, got.Status)
		assert.Nil(t, got.Result)
	})

	t.Run("completed", func(t *testing.T) {
		done := *job
		require.NoError(t, done.Complete(`{"summaries":[]}`))
		require.NoError(t, st.Finish(ctx, &done))

		got, err := svc.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, got.Status)
		require.NotNil(t, got.Result)
		assert.JSONEq(t, `{"summaries":[]}`, *got.Result)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := svc.GetStatus(ctx, "")
		assert.ErrorIs(t, err, ErrJobIDRequired)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.GetStatus(ctx, "nope")
		assert.Equal(t, ErrJobNotFound, err)
	})
}

func TestJobService_GetStatusStoreFailure(t *testing.T) {
	cause := errors.New("timeout")
	st := &failingStore{
		JobStore: memory.NewJobStore(testLogger()),
		GetFn: func(ctx context.Context, jobID string) (*domain.Job, error) {
			return nil, cause
		},
	}
	svc := newTestService(t, st, &mockInvoker{})

	_, err := svc.GetStatus(context.Background(), "job-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, err, cause)

	var svcErr *JobServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "get_status", svcErr.Operation)
}

func TestNewJobService_Validation(t *testing.T) {
	st := memory.NewJobStore(testLogger())

	_, err := NewJobService(nil, &mockInvoker{}, "", testLogger())
	assert.Error(t, err)
	_, err = NewJobService(st, nil, "", testLogger())
	assert.Error(t, err)
	_, err = NewJobService(st, &mockInvoker{}, "", nil)
	assert.Error(t, err)

	svc, err := NewJobService(st, &mockInvoker{}, "", testLogger())
	require.NoError(t, err)
	assert.Equal(t, task.DefaultTarget, svc.(*jobServiceImpl).target)
}
