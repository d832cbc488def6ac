package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
	"github.com/ericfisherdev/autopunch/internal/metrics"
)

// ErrRunAtNotInFuture is returned when a job is scheduled for a time that has
// already passed.
var ErrRunAtNotInFuture = errors.New("run time must be in the future")

// ErrJobRunning is returned when canceling a job that is executing.
var ErrJobRunning = errors.New("scheduled job is running")

// interruptedMessage is recorded on jobs and runs that were still running
// when the previous process stopped.
const interruptedMessage = "interrupted: autopunch stopped while the job was running"

// JobRunner executes one punch job.
type JobRunner interface {
	RunJob(ctx context.Context, req model.JobRequest) error
}

// SecretProvider hands out the master secret at execution time.
type SecretProvider interface {
	Get() (string, bool)
}

// SchedulerOptions tunes the scheduler loop.
type SchedulerOptions struct {
	Tick         time.Duration // how often due jobs are checked
	MisfireGrace time.Duration // how late a job may still start
	Workers      int64         // concurrent job executions
}

// ScheduleRequest describes a one-shot job to register.
type ScheduleRequest struct {
	Action   model.Action
	RunAt    time.Time
	DryRun   bool
	Headless bool
	Name     string
	Note     string
}

// Scheduler fires persisted one-shot jobs when they come due. Jobs run on a
// bounded worker pool, each with a context detached from the scheduler's so
// a shutdown never interrupts a punch half way through.
type Scheduler struct {
	jobs    driven.JobStore
	runner  JobRunner
	secrets SecretProvider
	opts    SchedulerOptions
	sem     *semaphore.Weighted
	wakeCh  chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	now     func() time.Time
}

// NewScheduler creates a Scheduler with all required dependencies.
func NewScheduler(jobs driven.JobStore, runner JobRunner, secrets SecretProvider, opts SchedulerOptions, logger *slog.Logger) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Scheduler{
		jobs:    jobs,
		runner:  runner,
		secrets: secrets,
		opts:    opts,
		sem:     semaphore.NewWeighted(opts.Workers),
		wakeCh:  make(chan struct{}, 1),
		logger:  logger,
		now:     time.Now,
	}
}

// Start fails jobs left running by a previous process, runs due jobs
// immediately and then on every tick. It blocks until ctx is canceled, then
// waits for jobs already running to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started",
		"tick", s.opts.Tick,
		"misfire_grace", s.opts.MisfireGrace,
		"workers", s.opts.Workers,
	)
	s.failInterrupted(ctx)
	s.dispatchDue(ctx)

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for running jobs")
			s.wg.Wait()
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		case <-s.wakeCh:
			s.dispatchDue(ctx)
		}
	}
}

// Schedule registers a one-shot job. The ID is derived from the action and
// run time, so the same punch cannot be scheduled twice.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) (model.ScheduledJob, error) {
	if _, ok := punchWindows[req.Action]; !ok {
		return model.ScheduledJob{}, fmt.Errorf("schedule: unknown action %q", req.Action)
	}
	if !req.RunAt.After(s.now()) {
		return model.ScheduledJob{}, ErrRunAtNotInFuture
	}

	now := s.now().UTC()
	job := model.ScheduledJob{
		ID:        model.ScheduledJobID(req.Action, req.RunAt),
		Name:      req.Name,
		Note:      req.Note,
		Action:    req.Action,
		DryRun:    req.DryRun,
		Headless:  req.Headless,
		RunAt:     req.RunAt,
		Status:    model.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.Add(ctx, job); err != nil {
		return model.ScheduledJob{}, err
	}

	s.logger.Info("job scheduled",
		"job_id", job.ID,
		"action", string(job.Action),
		"run_at", job.RunAt.Format(time.RFC3339),
		"dry_run", job.DryRun,
	)
	s.wake()
	return job, nil
}

// Cancel deletes a scheduled job. A job that is executing cannot be canceled.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return driven.ErrJobNotFound
	}
	if job.Status == model.JobStatusRunning {
		return ErrJobRunning
	}

	if err := s.jobs.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job canceled", "job_id", id)
	return nil
}

// List returns every scheduled job, including finished ones.
func (s *Scheduler) List(ctx context.Context) ([]model.ScheduledJob, error) {
	return s.jobs.ListAll(ctx)
}

// Wait blocks until every dispatched job has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// failInterrupted marks jobs still flagged running as failed. Nothing runs
// before Start, so those jobs belong to a process that died mid-run.
func (s *Scheduler) failInterrupted(ctx context.Context) {
	n, err := s.jobs.FailRunning(ctx, interruptedMessage)
	if err != nil {
		s.logger.Error("fail interrupted jobs failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Warn("marked interrupted jobs failed", "count", n)
	}
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// dispatchDue starts every due pending job a worker is free for. Jobs later
// than the misfire grace are marked missed; jobs without a free worker stay
// pending for the next tick.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()

	due, err := s.jobs.ListDue(ctx, now)
	if err != nil {
		s.logger.Error("list due jobs failed", "error", err)
		return
	}

	for _, job := range due {
		if ctx.Err() != nil {
			return
		}

		if late := now.Sub(job.RunAt); late > s.opts.MisfireGrace {
			metrics.ScheduledJobsMissed.Inc()
			msg := fmt.Sprintf("missed by %s (grace %s)", late.Round(time.Second), s.opts.MisfireGrace)
			s.logger.Warn("scheduled job missed", "job_id", job.ID, "late", late.Round(time.Second))
			s.setStatus(ctx, job.ID, model.JobStatusMissed, msg)
			continue
		}

		if !s.sem.TryAcquire(1) {
			s.logger.Info("all workers busy, deferring due jobs", "job_id", job.ID)
			return
		}

		if err := s.jobs.UpdateStatus(ctx, job.ID, model.JobStatusRunning, ""); err != nil {
			s.sem.Release(1)
			s.logger.Error("mark job running failed", "job_id", job.ID, "error", err)
			continue
		}

		s.wg.Add(1)
		go func(job model.ScheduledJob) {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.execute(context.WithoutCancel(ctx), job)
		}(job)
	}
}

func (s *Scheduler) execute(ctx context.Context, job model.ScheduledJob) {
	secret, _ := s.secrets.Get()

	err := s.runner.RunJob(ctx, model.JobRequest{
		Action:       job.Action,
		DryRun:       job.DryRun,
		Headless:     job.Headless,
		MasterSecret: secret,
		Trigger:      model.TriggerScheduled,
		JobID:        job.ID,
	})
	if err != nil {
		s.logger.Error("scheduled job failed", "job_id", job.ID, "error", err)
		s.setStatus(ctx, job.ID, model.JobStatusFailed, err.Error())
		return
	}
	s.setStatus(ctx, job.ID, model.JobStatusSucceeded, "")
}

func (s *Scheduler) setStatus(ctx context.Context, id string, status model.JobStatus, lastError string) {
	if err := s.jobs.UpdateStatus(ctx, id, status, lastError); err != nil {
		s.logger.Error("update job status failed", "job_id", id, "status", string(status), "error", err)
	}
}
