package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
)

// PostgresJobStore implements store.JobStore using the jobs table. It runs
// on either a connection pool or, via WithTx, an open transaction.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Compile-time check to ensure PostgresJobStore implements store.JobStore
var _ store.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "postgres_job_store")),
	}
}

// WithTx returns a store that runs every statement inside tx.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) *PostgresJobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Put implements store.JobStore. An existing record with the same ID is replaced.
func (s *PostgresJobStore) Put(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (job_id, status, result, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id) DO UPDATE
		SET status = EXCLUDED.status,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		string(job.Status),
		nullString(job.Result),
		emptyToNull(job.Error),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to store job: %w", MapError(err))
	}

	return nil
}

// Get implements store.JobStore.
func (s *PostgresJobStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT job_id, status, result, error, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", MapError(err))
	}

	return job, nil
}

// ListIDs implements store.JobStore. IDs are ordered by creation time.
func (s *PostgresJobStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_id FROM jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return ids, nil
}

// Delete implements store.JobStore.
func (s *PostgresJobStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete job: %w", MapError(err))
	}
	return nil
}

// Finish implements store.JobStore. The stored row is locked while its
// status is checked so concurrent finishers serialize.
func (s *PostgresJobStore) Finish(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	// Already inside a caller's transaction.
	if _, ok := s.db.(*sql.Tx); ok {
		return s.finishLocked(ctx, job)
	}

	db, ok := s.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("finish requires *sql.DB or *sql.Tx, got %T", s.db)
	}

	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return s.WithTx(tx).finishLocked(ctx, job)
	})
}

func (s *PostgresJobStore) finishLocked(ctx context.Context, job *domain.Job) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM jobs WHERE job_id = $1 FOR UPDATE`, job.ID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock job: %w", MapError(err))
	}

	if domain.JobStatus(status) != domain.JobStatusProcessing {
		return domain.ErrJobAlreadyFinished
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, result = $2, error = $3, updated_at = $4
		WHERE job_id = $5
	`,
		string(job.Status),
		nullString(job.Result),
		emptyToNull(job.Error),
		time.Now().UTC(),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", MapError(err))
	}

	return CheckRowsAffected(result, "job")
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job     domain.Job
		status  string
		result  sql.NullString
		errText sql.NullString
	)

	if err := row.Scan(&job.ID, &status, &result, &errText, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseJobStatus(status)
	if err != nil {
		return nil, fmt.Errorf("job %s has stored status %q: %w", job.ID, status, err)
	}
	job.Status = parsed

	if result.Valid {
		v := result.String
		job.Result = &v
	}
	job.Error = errText.String

	return &job, nil
}

// CheckRowsAffected returns store.ErrNotFound when an UPDATE or DELETE
// touched no rows.
func CheckRowsAffected(result sql.Result, entityName string) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s not found", store.ErrNotFound, entityName)
	}

	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func emptyToNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
