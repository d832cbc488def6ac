package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Compile-time interface satisfaction check.
var _ driven.JobStore = (*JobRepo)(nil)

// JobRepo is the SQLite implementation of the JobStore port interface.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, name, note, action, dry_run, headless, run_at, status, last_error, created_at, updated_at`

// Add inserts a scheduled job. Returns driven.ErrJobExists if the ID is taken.
func (r *JobRepo) Add(ctx context.Context, job model.ScheduledJob) error {
	const query = `INSERT INTO scheduled_jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		job.ID, job.Name, job.Note, string(job.Action), job.DryRun, job.Headless,
		formatTime(job.RunAt), string(job.Status), job.LastError,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("add job %s: %w", job.ID, driven.ErrJobExists)
		}
		return fmt.Errorf("add job %s: %w", job.ID, err)
	}

	return nil
}

// Get retrieves a job by ID. Returns nil, nil if it does not exist.
func (r *JobRepo) Get(ctx context.Context, id string) (*model.ScheduledJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = ?`

	job, err := scanJob(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	return job, nil
}

// ListAll returns all jobs ordered by run time.
func (r *JobRepo) ListAll(ctx context.Context) ([]model.ScheduledJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM scheduled_jobs ORDER BY run_at, id`

	return r.list(ctx, query)
}

// ListDue returns pending jobs whose run time is at or before now, oldest first.
func (r *JobRepo) ListDue(ctx context.Context, now time.Time) ([]model.ScheduledJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM scheduled_jobs
		WHERE status = ? AND run_at <= ?
		ORDER BY run_at, id`

	return r.list(ctx, query, string(model.JobStatusPending), formatTime(now))
}

func (r *JobRepo) list(ctx context.Context, query string, args ...any) ([]model.ScheduledJob, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

// UpdateStatus sets a job's status and last error. Returns driven.ErrJobNotFound
// if the job does not exist.
func (r *JobRepo) UpdateStatus(ctx context.Context, id string, status model.JobStatus, lastError string) error {
	const query = `UPDATE scheduled_jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), lastError, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}

	return expectOneRow(result, "update job "+id)
}

// FailRunning marks every running job failed. It is used at startup, when no
// job can still be running in this process.
func (r *JobRepo) FailRunning(ctx context.Context, lastError string) (int64, error) {
	const query = `UPDATE scheduled_jobs SET status = ?, last_error = ?, updated_at = ? WHERE status = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(model.JobStatusFailed), lastError, formatTime(time.Now()), string(model.JobStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("fail running jobs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

// Delete removes a job. Returns driven.ErrJobNotFound if it does not exist.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM scheduled_jobs WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}

	return expectOneRow(result, "delete job "+id)
}

func expectOneRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, driven.ErrJobNotFound)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*model.ScheduledJob, error) {
	var (
		job                         model.ScheduledJob
		action, status              string
		runAt, createdAt, updatedAt string
	)

	err := s.Scan(&job.ID, &job.Name, &job.Note, &action, &job.DryRun, &job.Headless,
		&runAt, &status, &job.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.Action = model.Action(action)
	job.Status = model.JobStatus(status)

	if job.RunAt, err = parseTime(runAt); err != nil {
		return nil, fmt.Errorf("parse run_at: %w", err)
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &job, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
