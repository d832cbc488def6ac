package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Start inserts a run in the running state and returns its ID.
func (r *RunRepo) Start(ctx context.Context, run model.JobRun) (int64, error) {
	const query = `INSERT INTO job_runs (job_id, action, dry_run, trigger_source, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	status := run.Status
	if status == "" {
		status = model.RunStatusRunning
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		run.JobID, string(run.Action), run.DryRun, string(run.Trigger), string(status), formatTime(startedAt))
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Finish records the outcome of a run.
func (r *RunRepo) Finish(ctx context.Context, id int64, status model.RunStatus, errMsg string, finishedAt time.Time) error {
	const query = `UPDATE job_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), errMsg, formatTime(finishedAt), id)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("finish run %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// FailRunning finishes every unfinished run as failed with errMsg.
func (r *RunRepo) FailRunning(ctx context.Context, errMsg string, finishedAt time.Time) (int64, error) {
	const query = `UPDATE job_runs SET status = ?, error = ?, finished_at = ? WHERE status = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(model.RunStatusFailed), errMsg, formatTime(finishedAt), string(model.RunStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("fail running runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]model.JobRun, error) {
	const query = `SELECT id, job_id, action, dry_run, trigger_source, status, error, started_at, finished_at
		FROM job_runs ORDER BY started_at DESC, id DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.JobRun
	for rows.Next() {
		var (
			run                     model.JobRun
			action, trigger, status string
			startedAt               string
			finishedAt              sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.JobID, &action, &run.DryRun, &trigger, &status,
			&run.Error, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Action = model.Action(action)
		run.Trigger = model.Trigger(trigger)
		run.Status = model.RunStatus(status)

		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finishedAt.Valid {
			if run.FinishedAt, err = parseTime(finishedAt.String); err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
