package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oidanice/tscribe/internal/domain"
)

// Store is the durable job record store backed by PostgreSQL. It is the
// only externally observable surface of the pipeline: the API reads
// snapshots from it, the worker writes phase transitions into it.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New creates a Store on top of an existing database handle
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// schema is applied at startup. CREATE TABLE IF NOT EXISTS keeps startup
// idempotent across API and worker processes racing on first boot.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id             VARCHAR(36) PRIMARY KEY,
	url                VARCHAR(2048) NOT NULL,
	status             VARCHAR(16) NOT NULL,
	title              TEXT NOT NULL DEFAULT '',
	requested_language VARCHAR(10) NOT NULL DEFAULT '',
	detected_language  VARCHAR(10) NOT NULL DEFAULT '',
	duration_seconds   DOUBLE PRECISION NOT NULL DEFAULT 0,
	progress           INTEGER NOT NULL DEFAULT 0,
	result_text        TEXT NOT NULL DEFAULT '',
	result_segments    TEXT NOT NULL DEFAULT '',
	source             VARCHAR(16) NOT NULL DEFAULT '',
	error_message      TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	completed_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC, job_id DESC);
`

// EnsureSchema creates the jobs table and indexes if missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Create inserts a new job record in QUEUED status
func (s *Store) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, url, status, requested_language, progress, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.JobID,
		job.URL,
		job.Status,
		job.RequestedLanguage,
		job.Progress,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Get retrieves a job by id, returning domain.ErrJobNotFound when the
// record does not exist (or was deleted mid-flight)
func (s *Store) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT * FROM jobs WHERE job_id = $1`

	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// Cursor is a keyset pagination cursor over (created_at, job_id)
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// List returns jobs newest-first. It fetches pageSize+1 rows so the
// caller can detect whether more pages exist.
func (s *Store) List(ctx context.Context, pageSize int, cursor *Cursor) ([]domain.Job, error) {
	query := `SELECT * FROM jobs`
	args := []interface{}{}

	if cursor != nil {
		query += ` WHERE (created_at, job_id) < ($1, $2)`
		args = append(args, cursor.CreatedAt, cursor.JobID)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, job_id DESC LIMIT $%d`, len(args)+1)
	args = append(args, pageSize+1)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// Delete removes a job record. Returns domain.ErrJobNotFound when no row
// was deleted so repeated deletes are a clean no-op error, not a crash.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// GetQueued fetches a job that must still be in QUEUED status. Queue pop
// exclusivity already guarantees a single owner; the status check guards
// against a redelivered message for a job another worker finished.
func (s *Store) GetQueued(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusQueued {
		return nil, domain.ErrJobAlreadyClaimed
	}
	return job, nil
}

// MarkDownloading transitions QUEUED -> DOWNLOADING
func (s *Store) MarkDownloading(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, domain.StatusDownloading, domain.StatusQueued)
}

// MarkTranscribing transitions DOWNLOADING -> TRANSCRIBING and records
// the metadata obtained during download
func (s *Store) MarkTranscribing(ctx context.Context, jobID, title string, durationSeconds float64) error {
	query := `
		UPDATE jobs
		SET status = $1, title = $2, duration_seconds = $3
		WHERE job_id = $4 AND status = $5
	`

	return s.execGuarded(ctx, jobID, query,
		domain.StatusTranscribing, title, durationSeconds, jobID, domain.StatusDownloading)
}

// MarkDone writes the terminal success state: transcript, source,
// detected language, progress pinned to 100, completed_at set once
func (s *Store) MarkDone(ctx context.Context, jobID string, result DoneResult) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    result_text = $2,
		    result_segments = $3,
		    detected_language = $4,
		    source = $5,
		    title = CASE WHEN $6 <> '' THEN $6 ELSE title END,
		    duration_seconds = CASE WHEN $7 > 0 THEN $7 ELSE duration_seconds END,
		    progress = 100,
		    completed_at = NOW()
		WHERE job_id = $8 AND status NOT IN ($9, $10)
	`

	return s.execGuarded(ctx, jobID, query,
		domain.StatusDone,
		result.Text,
		result.SegmentsJSON,
		result.DetectedLanguage,
		result.Source,
		result.Title,
		result.DurationSeconds,
		jobID,
		domain.StatusDone,
		domain.StatusFailed,
	)
}

// DoneResult bundles everything written at the DONE transition
type DoneResult struct {
	Text             string
	SegmentsJSON     string
	DetectedLanguage string
	Source           string
	Title            string
	DurationSeconds  float64
}

// MarkFailed writes the terminal failure state. Progress is left at its
// last known value. The guard keeps terminal states immutable.
func (s *Store) MarkFailed(ctx context.Context, jobID, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE job_id = $3 AND status NOT IN ($4, $5)
	`

	return s.execGuarded(ctx, jobID, query,
		domain.StatusFailed, errorMsg, jobID, domain.StatusDone, domain.StatusFailed)
}

// SetProgress writes a progress sample. GREATEST keeps progress
// monotonically non-decreasing even if samples arrive out of order, and
// the status guard stops late samples from touching terminal jobs.
func (s *Store) SetProgress(ctx context.Context, jobID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	query := `
		UPDATE jobs
		SET progress = GREATEST(progress, $1)
		WHERE job_id = $2 AND status NOT IN ($3, $4)
	`

	return s.execGuarded(ctx, jobID, query,
		progress, jobID, domain.StatusDone, domain.StatusFailed)
}

// FailInterrupted is the startup reconciliation sweep. Any job a prior
// process left in DOWNLOADING or TRANSCRIBING has no live owner anymore
// and is forced to FAILED. QUEUED jobs are untouched: their queue message
// still exists and a worker will pick them up normally.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE status IN ($3, $4)
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.StatusFailed,
		domain.ErrMsgInterruptedRestart,
		domain.StatusDownloading,
		domain.StatusTranscribing,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep interrupted jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		s.logger.Warn("Recovery sweep failed interrupted jobs",
			slog.Int64("count", rows),
		)
	}

	return rows, nil
}

// transition moves a job between two specific states
func (s *Store) transition(ctx context.Context, jobID, to, from string) error {
	query := `UPDATE jobs SET status = $1 WHERE job_id = $2 AND status = $3`
	return s.execGuarded(ctx, jobID, query, to, jobID, from)
}

// execGuarded runs a guarded UPDATE. A guarded UPDATE touching zero rows
// means either the row is gone or its status no longer matches the
// guard; those are different outcomes for the executor, so zero rows
// triggers a status re-read to tell them apart.
func (s *Store) execGuarded(ctx context.Context, jobID, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.classifyGuardMiss(ctx, jobID)
	}

	return nil
}

// classifyGuardMiss maps a zero-row guarded UPDATE onto ErrJobNotFound
// (record deleted) or ErrJobAlreadyClaimed (record exists but its status
// moved on, for example a duplicate delivery racing another worker)
func (s *Store) classifyGuardMiss(ctx context.Context, jobID string) error {
	var status string
	err := s.db.GetContext(ctx, &status, `SELECT status FROM jobs WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check job status: %w", err)
	}
	return domain.ErrJobAlreadyClaimed
}
