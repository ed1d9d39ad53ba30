package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
	goredis "github.com/redis/go-redis/v9"
)

// finishScript applies a terminal status only while the stored status is
// still processing. It returns -1 when the record is missing, 0 when it is
// already terminal and 1 when the update was applied.
//
// KEYS[1] job hash; ARGV status, has_result, result, error, updated_at.
var finishScript = goredis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return -1
end
if status ~= 'processing' then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'error', ARGV[4], 'updated_at', ARGV[5])
if ARGV[2] == '1' then
	redis.call('HSET', KEYS[1], 'result', ARGV[3])
else
	redis.call('HDEL', KEYS[1], 'result')
end
return 1
`)

// JobStore implements store.JobStore on Redis hashes.
type JobStore struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// Compile-time check to ensure JobStore implements store.JobStore
var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates a JobStore on client.
func NewJobStore(client goredis.Cmdable, logger *slog.Logger) *JobStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &JobStore{
		client: client,
		logger: logger.With(slog.String("component", "redis_job_store")),
	}
}

// Put implements store.JobStore. An existing record with the same ID is replaced.
func (s *JobStore) Put(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	key := jobKey(job.ID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, jobToMap(job))
	pipe.SAdd(ctx, jobIDsKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to store job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to store job: %w", err)
	}

	return nil
}

// Get implements store.JobStore.
func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	vals, err := s.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, store.ErrJobNotFound
	}

	return mapToJob(vals)
}

// ListIDs implements store.JobStore. IDs are returned sorted.
func (s *JobStore) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list job ids: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// Delete implements store.JobStore.
func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, jobKey(jobID))
		pipe.SRem(ctx, jobIDsKey, jobID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// Finish implements store.JobStore.
func (s *JobStore) Finish(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	hasResult, result := "0", ""
	if job.Result != nil {
		hasResult, result = "1", *job.Result
	}

	code, err := finishScript.Run(ctx, s.client, []string{jobKey(job.ID)},
		string(job.Status),
		hasResult,
		result,
		job.Error,
		time.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}

	switch code {
	case -1:
		return store.ErrJobNotFound
	case 0:
		return domain.ErrJobAlreadyFinished
	}

	s.logger.DebugContext(ctx, "job record finished",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)))
	return nil
}

func jobToMap(job *domain.Job) map[string]any {
	m := map[string]any{
		"id":         job.ID,
		"status":     string(job.Status),
		"error":      job.Error,
		"created_at": job.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.Result != nil {
		m["result"] = *job.Result
	}
	return m
}

func mapToJob(m map[string]string) (*domain.Job, error) {
	status, err := domain.ParseJobStatus(m["status"])
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", m["id"], err)
	}

	job := &domain.Job{
		ID:     m["id"],
		Status: status,
		Error:  m["error"],
	}

	if result, ok := m["result"]; ok {
		job.Result = &result
	}

	if job.CreatedAt, err = parseTime(m["created_at"]); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(m["updated_at"]); err != nil {
		return nil, err
	}

	return job, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q: %v", store.ErrInvalidEntity, v, err)
	}
	return t, nil
}
