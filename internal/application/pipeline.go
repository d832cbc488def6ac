package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
)

// SessionBinder produces a credential source bound to a vault session.
type SessionBinder interface {
	Bind(session model.VaultSession) driven.CredentialSource
}

// ProcessRequest is the input to one pipeline run. Session may be zero when
// the credential is expected to come from the cache.
type ProcessRequest struct {
	Action   model.Action
	DryRun   bool
	Session  model.VaultSession
	Headless bool
}

// JobPipeline runs one punch end to end: time advisory, credential
// resolution, browser login and the punch itself.
type JobPipeline struct {
	resolver *CredentialResolver
	vault    SessionBinder
	browser  driven.BrowserRunner
	item     string
	logger   *slog.Logger
	now      func() time.Time
}

// NewJobPipeline creates a JobPipeline reading item from the vault.
func NewJobPipeline(resolver *CredentialResolver, vault SessionBinder, browser driven.BrowserRunner, item string, logger *slog.Logger) *JobPipeline {
	return &JobPipeline{
		resolver: resolver,
		vault:    vault,
		browser:  browser,
		item:     item,
		logger:   logger,
		now:      time.Now,
	}
}

// RunProcess executes the punch. It returns true on success; every failure is
// returned as the original error, never as false with a nil error.
func (p *JobPipeline) RunProcess(ctx context.Context, req ProcessRequest) (bool, error) {
	if _, ok := punchWindows[req.Action]; !ok {
		return false, fmt.Errorf("run process: unknown action %q", req.Action)
	}

	mode := "LIVE"
	if req.DryRun {
		mode = "DRY RUN"
	}
	p.logger.Info("starting punch process", "action", req.Action.Label(), "mode", mode, "headless", req.Headless)
	if req.DryRun {
		p.logger.Warn("DRY RUN: the punch control will be located but not clicked")
	}

	AdviseTime(p.logger, req.Action, p.now())

	cred, err := p.resolver.GetCredentials(ctx, p.item, func() driven.CredentialSource {
		return p.vault.Bind(req.Session)
	})
	if err != nil {
		p.logger.Error("credential resolution failed", "item", p.item, "error", err)
		return false, err
	}

	var report model.PunchReport
	err = p.browser.WithSession(ctx, req.Headless, func(s driven.PortalSession) error {
		if err := s.Login(ctx, cred); err != nil {
			return err
		}

		var err error
		if req.Action == model.ActionClockIn {
			report, err = s.ClockIn(ctx, req.DryRun)
		} else {
			report, err = s.ClockOut(ctx, req.DryRun)
		}
		return err
	})
	if err != nil {
		p.logger.Error("punch process failed", "action", req.Action.Label(), "mode", mode, "error", err)
		return false, err
	}

	p.logger.Info("punch process completed",
		"action", req.Action.Label(),
		"mode", mode,
		"clicked", report.Clicked,
		"fallback_click", report.FallbackUsed,
		"overlay", string(report.Overlay),
		"alert", string(report.Alert),
	)
	return true, nil
}
