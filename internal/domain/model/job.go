package model

import (
	"fmt"
	"time"
)

// Action is the punch to perform on the portal.
type Action string

const (
	ActionClockIn  Action = "in"
	ActionClockOut Action = "out"
)

// ParseAction accepts the short trigger form ("in", "out") as well as the
// long form ("clock_in", "clock_out").
func ParseAction(raw string) (Action, error) {
	switch raw {
	case "in", "clock_in", "clock-in":
		return ActionClockIn, nil
	case "out", "clock_out", "clock-out":
		return ActionClockOut, nil
	default:
		return "", fmt.Errorf("unknown action %q: expected \"in\" or \"out\"", raw)
	}
}

// Label returns a human-readable name used in logs and the dashboard.
func (a Action) Label() string {
	switch a {
	case ActionClockIn:
		return "clock-in"
	case ActionClockOut:
		return "clock-out"
	default:
		return string(a)
	}
}

// Trigger identifies what started a job run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerCLI       Trigger = "cli"
)

// JobRequest is the immutable input to JobService.RunJob. MasterSecret is only
// consulted when the credential cache misses.
type JobRequest struct {
	Action       Action
	DryRun       bool
	Headless     bool
	MasterSecret string
	Trigger      Trigger
	JobID        string // empty for manual runs
}

// JobStatus is the lifecycle state of a scheduled job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusMissed    JobStatus = "missed"
)

// ScheduledJob is a one-shot punch registered for a future time. The master
// secret is never part of it; scheduled runs obtain it from the secret store
// at execution time.
type ScheduledJob struct {
	ID        string
	Name      string
	Note      string
	Action    Action
	DryRun    bool
	Headless  bool
	RunAt     time.Time
	Status    JobStatus
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduledJobID builds the job identifier from the action and the run time
// in UTC, e.g. "in_20260301085500". The same instant always yields the same
// identifier whatever offset runAt carries.
func ScheduledJobID(action Action, runAt time.Time) string {
	return string(action) + "_" + runAt.UTC().Format("20060102150405")
}

// RunStatus is the outcome of a single job execution.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// JobRun is one execution of the job pipeline, manual or scheduled.
type JobRun struct {
	ID         int64
	JobID      string
	Action     Action
	DryRun     bool
	Trigger    Trigger
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took, or zero while it is still running.
func (r JobRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
