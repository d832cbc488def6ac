package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
	"github.com/ericfisherdev/autopunch/internal/metrics"
)

// ProcessRunner runs the punch pipeline.
type ProcessRunner interface {
	RunProcess(ctx context.Context, req ProcessRequest) (bool, error)
}

// JobService decides whether a job can go straight to the pipeline from the
// credential cache or must unlock the vault first. Every job start, success
// and failure is written both to the structured logger and as a plain line to
// the console writer.
type JobService struct {
	vault    driven.VaultClient
	resolver *CredentialResolver
	pipeline ProcessRunner
	runs     driven.RunStore
	item     string
	console  io.Writer
	logger   *slog.Logger
	now      func() time.Time
}

// NewJobService creates a JobService. runs may be nil to skip run history.
func NewJobService(
	vault driven.VaultClient,
	resolver *CredentialResolver,
	pipeline ProcessRunner,
	runs driven.RunStore,
	item string,
	console io.Writer,
	logger *slog.Logger,
) *JobService {
	return &JobService{
		vault:    vault,
		resolver: resolver,
		pipeline: pipeline,
		runs:     runs,
		item:     item,
		console:  console,
		logger:   logger,
		now:      time.Now,
	}
}

// RunJob executes one punch job. The returned error is the one raised by the
// failing step, unchanged.
func (s *JobService) RunJob(ctx context.Context, req model.JobRequest) error {
	started := s.now()
	s.consolef(started, "Job Started: %s (Dry=%t)", req.Action, req.DryRun)
	s.logger.Info("job started",
		"action", string(req.Action),
		"dry_run", req.DryRun,
		"headless", req.Headless,
		"trigger", string(req.Trigger),
		"job_id", req.JobID,
	)

	runID := s.recordStart(ctx, req, started)

	err := s.execute(ctx, req)

	finished := s.now()
	elapsed := finished.Sub(started)
	mode := "live"
	if req.DryRun {
		mode = "dry_run"
	}
	metrics.JobDuration.WithLabelValues(string(req.Action)).Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobsTotal.WithLabelValues(string(req.Action), mode, "failure").Inc()
		s.recordFinish(ctx, runID, model.RunStatusFailed, err.Error(), finished)
		s.consolef(finished, "Job Failed: %s", err)
		s.logger.Error("job failed", "action", string(req.Action), "duration", elapsed.Round(time.Millisecond), "error", err)
		return err
	}

	metrics.JobsTotal.WithLabelValues(string(req.Action), mode, "success").Inc()
	s.recordFinish(ctx, runID, model.RunStatusSucceeded, "", finished)
	s.consolef(finished, "Job Completed Successfully.")
	s.logger.Info("job completed", "action", string(req.Action), "duration", elapsed.Round(time.Millisecond))
	return nil
}

func (s *JobService) execute(ctx context.Context, req model.JobRequest) error {
	process := ProcessRequest{Action: req.Action, DryRun: req.DryRun, Headless: req.Headless}

	if s.resolver.IsCached(s.item) {
		s.logger.Info("cached credential found, skipping vault unlock", "item", s.item)
		_, err := s.pipeline.RunProcess(ctx, process)
		return err
	}

	if strings.TrimSpace(req.MasterSecret) == "" {
		return model.ErrMasterSecretRequired
	}

	session, err := s.vault.Unlock(ctx, req.MasterSecret)
	if err != nil {
		return err
	}
	if session.IsZero() {
		return model.ErrEmptySessionKey
	}

	s.vault.Sync(ctx, session)

	process.Session = session
	_, err = s.pipeline.RunProcess(ctx, process)
	return err
}

// recordStart stores the run in the history. History is best effort: a
// failure is logged and the job proceeds.
// FailInterruptedRuns finishes run history rows left running by a previous
// process. Call it before any job starts.
func (s *JobService) FailInterruptedRuns(ctx context.Context) {
	if s.runs == nil {
		return
	}
	n, err := s.runs.FailRunning(ctx, interruptedMessage, s.now().UTC())
	if err != nil {
		s.logger.Error("fail interrupted runs failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Warn("marked interrupted runs failed", "count", n)
	}
}

func (s *JobService) recordStart(ctx context.Context, req model.JobRequest, started time.Time) int64 {
	if s.runs == nil {
		return 0
	}
	id, err := s.runs.Start(ctx, model.JobRun{
		JobID:     req.JobID,
		Action:    req.Action,
		DryRun:    req.DryRun,
		Trigger:   req.Trigger,
		Status:    model.RunStatusRunning,
		StartedAt: started,
	})
	if err != nil {
		s.logger.Warn("failed to record run start", "error", err)
		return 0
	}
	return id
}

func (s *JobService) recordFinish(ctx context.Context, id int64, status model.RunStatus, errMsg string, finished time.Time) {
	if s.runs == nil || id == 0 {
		return
	}
	if err := s.runs.Finish(context.WithoutCancel(ctx), id, status, errMsg, finished); err != nil {
		s.logger.Warn("failed to record run result", "run_id", id, "error", err)
	}
}

func (s *JobService) consolef(at time.Time, format string, args ...any) {
	if s.console == nil {
		return
	}
	fmt.Fprintf(s.console, "[%s] %s\n", at.Format("15:04:05"), fmt.Sprintf(format, args...))
}
