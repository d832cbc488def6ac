package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

// ErrJobNotFound is returned when a scheduled job ID does not exist.
var ErrJobNotFound = errors.New("scheduled job not found")

// ErrJobExists is returned when a job with the same ID is already scheduled.
var ErrJobExists = errors.New("scheduled job already exists")

// JobStore defines the driven port for scheduled job persistence. It never
// stores secrets.
type JobStore interface {
	Add(ctx context.Context, job model.ScheduledJob) error
	// Get returns the job, or nil when it does not exist.
	Get(ctx context.Context, id string) (*model.ScheduledJob, error)
	ListAll(ctx context.Context) ([]model.ScheduledJob, error)
	// ListDue returns pending jobs with RunAt at or before now, oldest first.
	ListDue(ctx context.Context, now time.Time) ([]model.ScheduledJob, error)
	UpdateStatus(ctx context.Context, id string, status model.JobStatus, lastError string) error
	// FailRunning marks every running job failed with lastError and returns
	// how many it changed.
	FailRunning(ctx context.Context, lastError string) (int64, error)
	// Delete removes a job. Returns ErrJobNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// RunStore defines the driven port for the job run history.
type RunStore interface {
	// Start records a running job and returns its ID.
	Start(ctx context.Context, run model.JobRun) (int64, error)
	Finish(ctx context.Context, id int64, status model.RunStatus, errMsg string, finishedAt time.Time) error
	ListRecent(ctx context.Context, limit int) ([]model.JobRun, error)
	// FailRunning finishes every run still marked running as failed and
	// returns how many it changed.
	FailRunning(ctx context.Context, errMsg string, finishedAt time.Time) (int64, error)
}
