package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
	"github.com/ericfisherdev/autopunch/internal/metrics"
)

// Portal element locators.
var (
	usernameField       = Selector{Query: "#id"}
	passwordField       = Selector{Query: "#password"}
	loginButton         = Selector{Query: "//div[contains(@class, 'btn-control-message') and text()='OK']", XPath: true}
	loggedInMarker      = Selector{Query: ".record-clock-in"}
	notificationOverlay = Selector{Query: "#notification_content"}
)

// punchControl returns the punch button for action, ".record-clock-in" or
// ".record-clock-out".
func punchControl(action model.Action) Selector {
	return Selector{Query: ".record-" + action.Label()}
}

// Timeouts bounds each wait the portal performs.
type Timeouts struct {
	Login   time.Duration
	Punch   time.Duration
	Overlay time.Duration
	Alert   time.Duration
	Settle  time.Duration
}

// DefaultTimeouts returns the waits tuned for the production portal.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Login:   15 * time.Second,
		Punch:   10 * time.Second,
		Overlay: 5 * time.Second,
		Alert:   2 * time.Second,
		Settle:  2 * time.Second,
	}
}

type portalState int

const (
	stateDriverReady portalState = iota
	stateLoggedIn
	statePunchAttempted
	stateDone
	stateFailed
)

// Portal is the login-and-punch state machine over one driver.
type Portal struct {
	drv      driver
	url      string
	timeouts Timeouts
	diag     *Diagnostics
	logger   *slog.Logger
	state    portalState
}

var _ driven.PortalSession = (*Portal)(nil)

func newPortal(drv driver, url string, timeouts Timeouts, diag *Diagnostics, logger *slog.Logger) *Portal {
	return &Portal{
		drv:      drv,
		url:      url,
		timeouts: timeouts,
		diag:     diag,
		logger:   logger,
		state:    stateDriverReady,
	}
}

// Login opens the portal and signs in. A wait timeout captures diagnostics
// under "login_timeout" and returns *model.ElementTimeoutError; any other
// failure captures "login_generic" and is returned unchanged.
func (p *Portal) Login(ctx context.Context, cred model.Credential) error {
	if p.state != stateDriverReady {
		return fmt.Errorf("login: portal session is not fresh")
	}
	p.logger.Info("navigating to portal", "url", p.url)

	if err := p.login(ctx, cred); err != nil {
		p.state = stateFailed
		var timeoutErr *model.ElementTimeoutError
		if errors.As(err, &timeoutErr) {
			p.diag.Capture(ctx, p.drv, "login_timeout")
		} else {
			p.diag.Capture(ctx, p.drv, "login_generic")
		}
		p.logger.Error("login failed", "error", err)
		return err
	}

	p.state = stateLoggedIn
	p.logger.Info("login successful")
	return nil
}

func (p *Portal) login(ctx context.Context, cred model.Credential) error {
	if err := p.drv.Navigate(ctx, p.url); err != nil {
		return err
	}
	if err := p.wait(ctx, "login_timeout", usernameField, p.timeouts.Login, p.drv.WaitVisible); err != nil {
		return err
	}
	if err := p.drv.Fill(ctx, usernameField, cred.Username); err != nil {
		return err
	}
	if err := p.drv.Fill(ctx, passwordField, cred.Password); err != nil {
		return err
	}
	p.settle(ctx)

	if err := p.wait(ctx, "login_timeout", loginButton, p.timeouts.Login, p.drv.WaitClickable); err != nil {
		return err
	}
	if _, err := p.click(ctx, loginButton); err != nil {
		return err
	}
	return p.wait(ctx, "login_timeout", loggedInMarker, p.timeouts.Login, p.drv.WaitVisible)
}

// ClockIn punches in. With dryRun set the button is located but never clicked.
func (p *Portal) ClockIn(ctx context.Context, dryRun bool) (model.PunchReport, error) {
	return p.punch(ctx, model.ActionClockIn, dryRun)
}

// ClockOut punches out. With dryRun set the button is located but never clicked.
func (p *Portal) ClockOut(ctx context.Context, dryRun bool) (model.PunchReport, error) {
	return p.punch(ctx, model.ActionClockOut, dryRun)
}

func (p *Portal) punch(ctx context.Context, action model.Action, dryRun bool) (model.PunchReport, error) {
	report := model.PunchReport{Action: action, DryRun: dryRun, Alert: model.StepSkipped}
	label := action.Label()

	if p.state != stateLoggedIn {
		return report, fmt.Errorf("%s: not logged in", label)
	}
	p.logger.Info("attempting punch", "action", label, "dry_run", dryRun)

	report.Overlay = p.waitOverlay(ctx)

	target := punchControl(action)
	if err := p.wait(ctx, label+"_not_found", target, p.timeouts.Punch, p.drv.WaitClickable); err != nil {
		p.state = stateFailed
		p.diag.Capture(ctx, p.drv, label+"_not_found")
		p.logger.Error("punch control not found", "action", label, "error", err)
		return report, err
	}

	// Nothing past this point may run in dry-run mode.
	if dryRun {
		p.state = stateDone
		p.logger.Info("DRY RUN: punch control is clickable, click suppressed", "action", label, "selector", target.Query)
		return report, nil
	}

	p.state = statePunchAttempted
	p.drv.DiscardAlerts()
	fallback, err := p.click(ctx, target)
	report.FallbackUsed = fallback
	if err != nil {
		p.state = stateFailed
		p.diag.Capture(ctx, p.drv, label+"_generic")
		p.logger.Error("punch click failed", "action", label, "error", err)
		return report, err
	}
	report.Clicked = true
	p.logger.Info("punch clicked", "action", label, "fallback", fallback)

	p.settle(ctx)
	report.Alert = p.acceptAlert(ctx)

	p.state = stateDone
	return report, nil
}

// waitOverlay waits for the notification overlay to go away. It never fails
// the punch.
func (p *Portal) waitOverlay(ctx context.Context) model.StepOutcome {
	outcome := model.StepFound
	err := p.drv.WaitInvisible(ctx, notificationOverlay, p.timeouts.Overlay)
	switch {
	case err == nil:
	case errors.Is(err, errWaitTimeout):
		outcome = model.StepNotFound
		p.logger.Warn("notification overlay still visible, proceeding", "timeout", p.timeouts.Overlay)
	default:
		outcome = model.StepError
		p.logger.Warn("overlay check failed, proceeding", "error", err)
	}
	metrics.PunchStepsTotal.WithLabelValues("overlay", string(outcome)).Inc()
	return outcome
}

// acceptAlert accepts a confirmation dialog if one appears. It never fails
// the punch.
func (p *Portal) acceptAlert(ctx context.Context) model.StepOutcome {
	outcome := model.StepFound
	accepted, err := p.drv.AwaitAlert(ctx, p.timeouts.Alert)
	switch {
	case err == nil && accepted:
		p.logger.Info("confirmation alert accepted")
	case err == nil || errors.Is(err, errWaitTimeout):
		outcome = model.StepNotFound
	default:
		outcome = model.StepError
		p.logger.Warn("alert handling failed, ignoring", "error", err)
	}
	metrics.PunchStepsTotal.WithLabelValues("alert", string(outcome)).Inc()
	return outcome
}

// click performs a native click, retrying once with a script click when the
// native click is intercepted. It reports whether the fallback was used.
func (p *Portal) click(ctx context.Context, sel Selector) (bool, error) {
	err := p.drv.Click(ctx, sel)
	var intercepted *model.ClickInterceptedError
	if !errors.As(err, &intercepted) {
		return false, err
	}

	p.logger.Warn("click intercepted, retrying with script click", "selector", sel.Query)
	metrics.PunchStepsTotal.WithLabelValues("click_fallback", "used").Inc()
	return true, p.drv.ScriptClick(ctx, sel)
}

// settle waits for the page to finish loading. A timeout is not an error.
func (p *Portal) settle(ctx context.Context) {
	if err := p.drv.WaitSettled(ctx, p.timeouts.Settle); err != nil {
		p.logger.Debug("page did not settle in time", "error", err)
	}
}

type waitFunc func(ctx context.Context, sel Selector, timeout time.Duration) error

// wait runs fn and converts a failure into *model.ElementTimeoutError.
func (p *Portal) wait(ctx context.Context, phase string, sel Selector, timeout time.Duration, fn waitFunc) error {
	if err := fn(ctx, sel, timeout); err != nil {
		return &model.ElementTimeoutError{Phase: phase, Selector: sel.Query, Err: err}
	}
	return nil
}
