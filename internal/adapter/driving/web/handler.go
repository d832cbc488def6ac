// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/autopunch/internal/adapter/driving/web/templates"
	vm "github.com/ericfisherdev/autopunch/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/autopunch/internal/application"
	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
)

// JobRunner executes a punch job synchronously.
type JobRunner interface {
	RunJob(ctx context.Context, req model.JobRequest) error
}

// JobScheduler manages one-shot scheduled jobs.
type JobScheduler interface {
	Schedule(ctx context.Context, req application.ScheduleRequest) (model.ScheduledJob, error)
	Cancel(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.ScheduledJob, error)
}

// VaultStateReader reports the vault lock state.
type VaultStateReader interface {
	Status(ctx context.Context) model.VaultStatus
	Invalidate()
}

// SecretHolder keeps the master secret for scheduled jobs.
type SecretHolder interface {
	Put(secret string)
	Get() (string, bool)
	Held() bool
	ExpiresAt() time.Time
	Clear()
}

// CredentialCache is the subset of the credential resolver the GUI exposes.
type CredentialCache interface {
	IsCached(itemName string) bool
	ClearCache() error
}

// Deps groups the collaborators the handler needs.
type Deps struct {
	Jobs       JobRunner
	Scheduler  JobScheduler
	Vault      driven.VaultClient
	VaultState VaultStateReader
	Secrets    SecretHolder
	Cache      CredentialCache
	Runs       driven.RunStore
	VaultItem  string
	Location   *time.Location
}

const recentRuns = 15

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler with all required dependencies. A nil
// Location renders times in the process local zone.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &Handler{deps: deps, logger: logger, now: time.Now}
}

// Dashboard renders the main dashboard page with the full HTML layout.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := vm.DashboardViewModel{
		CSRFToken: csrfToken(w, r),
		Flash:     flashFromQuery(r.URL.Query()),
		Window:    toWindowViewModels(h.now().In(h.deps.Location)),
	}

	status := h.deps.VaultState.Status(ctx)
	d.Vault = vm.VaultViewModel{
		Status:           string(status),
		StatusClass:      vaultStatusClass(status),
		SecretHeld:       h.deps.Secrets.Held(),
		CredentialCached: h.deps.Cache.IsCached(h.deps.VaultItem),
	}
	if exp := h.deps.Secrets.ExpiresAt(); !exp.IsZero() {
		d.Vault.SecretExpiresAt = exp.In(h.deps.Location).Format(displayTime)
	}

	jobs, err := h.deps.Scheduler.List(ctx)
	if err != nil {
		h.logger.Error("failed to list jobs for dashboard", "error", err)
	}
	for _, j := range jobs {
		d.Jobs = append(d.Jobs, toJobViewModel(j, h.deps.Location))
	}

	runs, err := h.deps.Runs.ListRecent(ctx, recentRuns)
	if err != nil {
		h.logger.Error("failed to list runs for dashboard", "error", err)
	}
	for _, run := range runs {
		d.Runs = append(d.Runs, toRunViewModel(run, h.deps.Location))
	}

	layout := templates.Layout("autopunch", templates.Dashboard(d))
	if err := layout.Render(ctx, w); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// UnlockVault verifies the submitted master secret and holds it for
// scheduled jobs.
func (h *Handler) UnlockVault(w http.ResponseWriter, r *http.Request) {
	secret := r.FormValue("master_secret")
	if secret == "" {
		h.redirect(w, r, "Enter the master password.", true)
		return
	}

	session, err := h.deps.Vault.Unlock(r.Context(), secret)
	if err == nil && session.IsZero() {
		err = model.ErrEmptySessionKey
	}
	if err != nil {
		h.logger.Warn("dashboard unlock failed", "error", err)
		h.redirect(w, r, err.Error(), true)
		return
	}

	h.deps.Secrets.Put(secret)
	h.deps.VaultState.Invalidate()
	h.redirect(w, r, "Vault unlocked. The master password is held for scheduled jobs.", false)
}

// LockVault forgets the held master secret.
func (h *Handler) LockVault(w http.ResponseWriter, r *http.Request) {
	h.deps.Secrets.Clear()
	h.deps.VaultState.Invalidate()
	h.redirect(w, r, "Master password forgotten.", false)
}

// RunNow runs a punch and reports the outcome after it finishes.
func (h *Handler) RunNow(w http.ResponseWriter, r *http.Request) {
	action, err := model.ParseAction(r.FormValue("action"))
	if err != nil {
		h.redirect(w, r, err.Error(), true)
		return
	}
	dryRun := !formBool(r, "live")

	secret := r.FormValue("master_secret")
	if secret == "" {
		secret, _ = h.deps.Secrets.Get()
	}

	err = h.deps.Jobs.RunJob(context.WithoutCancel(r.Context()), model.JobRequest{
		Action:       action,
		DryRun:       dryRun,
		Headless:     formBool(r, "headless"),
		MasterSecret: secret,
		Trigger:      model.TriggerManual,
	})
	if err != nil {
		h.redirect(w, r, action.Label()+" failed: "+err.Error(), true)
		return
	}
	h.redirect(w, r, action.Label()+" completed ("+modeLabel(dryRun)+").", false)
}

// ScheduleJob registers a one-shot punch from the schedule form. run_at is
// a datetime-local value interpreted in the dashboard location.
func (h *Handler) ScheduleJob(w http.ResponseWriter, r *http.Request) {
	action, err := model.ParseAction(r.FormValue("action"))
	if err != nil {
		h.redirect(w, r, err.Error(), true)
		return
	}

	runAt, err := parseLocalDateTime(r.FormValue("run_at"), h.deps.Location)
	if err != nil {
		h.redirect(w, r, "Run at must be a date and time.", true)
		return
	}

	job, err := h.deps.Scheduler.Schedule(r.Context(), application.ScheduleRequest{
		Action:   action,
		RunAt:    runAt,
		DryRun:   !formBool(r, "live"),
		Headless: formBool(r, "headless"),
		Name:     strings.TrimSpace(r.FormValue("name")),
		Note:     strings.TrimSpace(r.FormValue("note")),
	})
	switch {
	case errors.Is(err, application.ErrRunAtNotInFuture):
		h.redirect(w, r, "Run at must be in the future.", true)
		return
	case errors.Is(err, driven.ErrJobExists):
		h.redirect(w, r, "That punch is already scheduled.", true)
		return
	case err != nil:
		h.logger.Error("failed to schedule job from dashboard", "error", err)
		h.redirect(w, r, "Could not schedule the job.", true)
		return
	}
	h.redirect(w, r, "Scheduled "+job.Action.Label()+" for "+job.RunAt.In(h.deps.Location).Format(displayTime)+".", false)
}

// CancelJob drops a scheduled job.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("id")
	if err := h.deps.Scheduler.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, driven.ErrJobNotFound):
			h.redirect(w, r, "Job not found.", true)
			return
		case errors.Is(err, application.ErrJobRunning):
			h.redirect(w, r, "The job is running and can no longer be canceled.", true)
			return
		}
		h.logger.Error("failed to cancel job from dashboard", "job_id", id, "error", err)
		h.redirect(w, r, "Could not cancel the job.", true)
		return
	}
	h.redirect(w, r, "Job cancelled.", false)
}

// ClearCache deletes the credential cache file.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Cache.ClearCache(); err != nil {
		h.logger.Error("failed to clear credential cache from dashboard", "error", err)
		h.redirect(w, r, "Could not clear the credential cache.", true)
		return
	}
	h.redirect(w, r, "Credential cache cleared.", false)
}

// redirect sends the browser back to the dashboard with a flash message
// (post/redirect/get).
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, msg string, isErr bool) {
	q := url.Values{}
	q.Set("msg", msg)
	if isErr {
		q.Set("err", "1")
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

func flashFromQuery(q url.Values) vm.FlashViewModel {
	return vm.FlashViewModel{Message: q.Get("msg"), IsError: q.Get("err") == "1"}
}

func formBool(r *http.Request, field string) bool {
	switch r.FormValue(field) {
	case "1", "on", "true":
		return true
	default:
		return false
	}
}

func parseLocalDateTime(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid datetime-local value")
}
