package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

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

// CredentialCache is the subset of the credential resolver the API exposes.
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
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	deps     Deps
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// RegisterRoutes adds the API routes to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/vault/status", h.VaultStatus)
	mux.HandleFunc("POST /api/v1/vault/unlock", h.UnlockVault)
	mux.HandleFunc("POST /api/v1/vault/lock", h.LockVault)
	mux.HandleFunc("POST /api/v1/jobs/run", h.RunJob)
	mux.HandleFunc("GET /api/v1/jobs", h.ListJobs)
	mux.HandleFunc("POST /api/v1/jobs", h.ScheduleJob)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", h.CancelJob)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("DELETE /api/v1/cache", h.ClearCache)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return Wrap(mux, logger)
}

// Wrap applies the standard middleware chain to next: logging, cross-origin
// protection, the JSON body check and panic recovery.
func Wrap(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, next)
	wrapped = jsonBodyMiddleware(wrapped)
	wrapped = crossOriginMiddleware(logger, wrapped)
	return loggingMiddleware(logger, wrapped)
}

// Health returns the service health status.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// VaultStatus reports the vault lock state, whether a master secret is held
// for scheduled jobs, and whether the portal credential is cached.
func (h *Handler) VaultStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.vaultStatusResponse(r.Context()))
}

func (h *Handler) vaultStatusResponse(ctx context.Context) VaultStatusResponse {
	resp := VaultStatusResponse{
		Status:           string(h.deps.VaultState.Status(ctx)),
		SecretHeld:       h.deps.Secrets.Held(),
		CredentialCached: h.deps.Cache.IsCached(h.deps.VaultItem),
	}
	if exp := h.deps.Secrets.ExpiresAt(); !exp.IsZero() {
		resp.SecretExpiresAt = exp.UTC().Format(time.RFC3339)
	}
	return resp
}

// UnlockVault verifies the master secret against the vault and, on success,
// keeps it in memory for scheduled jobs.
func (h *Handler) UnlockVault(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.deps.Vault.Unlock(r.Context(), req.MasterSecret)
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	if session.IsZero() {
		h.writeJobError(w, model.ErrEmptySessionKey)
		return
	}

	h.deps.Secrets.Put(req.MasterSecret)
	h.deps.VaultState.Invalidate()
	h.logger.Info("master secret accepted and held for scheduled jobs")

	writeJSON(w, http.StatusOK, h.vaultStatusResponse(r.Context()))
}

// LockVault drops the held master secret.
func (h *Handler) LockVault(w http.ResponseWriter, _ *http.Request) {
	h.deps.Secrets.Clear()
	h.deps.VaultState.Invalidate()
	h.logger.Info("held master secret cleared")
	w.WriteHeader(http.StatusNoContent)
}

// RunJob runs a punch immediately and responds when it finishes. The job
// keeps running if the client disconnects.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	var req RunJobRequest
	if !h.decode(w, r, &req) {
		return
	}

	action, err := model.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	secret := req.MasterSecret
	if secret == "" {
		secret, _ = h.deps.Secrets.Get()
	}

	started := time.Now()
	err = h.deps.Jobs.RunJob(context.WithoutCancel(r.Context()), model.JobRequest{
		Action:       action,
		DryRun:       *req.DryRun,
		Headless:     req.Headless,
		MasterSecret: secret,
		Trigger:      model.TriggerManual,
	})
	if err != nil {
		h.writeJobError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RunJobResponse{
		Action:   string(action),
		DryRun:   *req.DryRun,
		Status:   string(model.RunStatusSucceeded),
		Duration: time.Since(started).Round(time.Millisecond).String(),
	})
}

// ListJobs returns every scheduled job.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.deps.Scheduler.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ScheduleJob registers a one-shot punch.
func (h *Handler) ScheduleJob(w http.ResponseWriter, r *http.Request) {
	var req ScheduleJobRequest
	if !h.decode(w, r, &req) {
		return
	}

	action, err := model.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.deps.Scheduler.Schedule(r.Context(), application.ScheduleRequest{
		Action:   action,
		RunAt:    req.RunAt,
		DryRun:   *req.DryRun,
		Headless: req.Headless,
		Name:     req.Name,
		Note:     req.Note,
	})
	switch {
	case errors.Is(err, application.ErrRunAtNotInFuture):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, driven.ErrJobExists):
		writeError(w, http.StatusConflict, "a job for that action and time is already scheduled")
		return
	case err != nil:
		h.logger.Error("failed to schedule job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

// CancelJob removes a scheduled job.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.deps.Scheduler.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, driven.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found")
			return
		case errors.Is(err, application.ErrJobRunning):
			writeError(w, http.StatusConflict, "job is running and cannot be canceled")
			return
		}
		h.logger.Error("failed to cancel job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// ListRuns returns the most recent job runs. ?limit= caps the count.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := h.deps.Runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ClearCache deletes the local credential cache.
func (h *Handler) ClearCache(w http.ResponseWriter, _ *http.Request) {
	if err := h.deps.Cache.ClearCache(); err != nil {
		h.logger.Error("failed to clear credential cache", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode parses and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// writeJobError maps the job error taxonomy onto HTTP statuses. The message
// is the error's own text, which never contains the master secret.
func (h *Handler) writeJobError(w http.ResponseWriter, err error) {
	var (
		unlockErr   *model.VaultUnlockError
		notFoundErr *model.CredentialNotFoundError
		cmdErr      *model.VaultCommandError
		launchErr   *model.BrowserLaunchError
		timeoutErr  *model.ElementTimeoutError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrMasterSecretRequired):
		status = http.StatusPreconditionRequired
	case errors.As(err, &unlockErr):
		status = http.StatusUnauthorized
	case errors.As(err, &notFoundErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrEmptySessionKey), errors.As(err, &cmdErr), errors.As(err, &timeoutErr):
		status = http.StatusBadGateway
	case errors.As(err, &launchErr):
		status = http.StatusServiceUnavailable
	}

	writeError(w, status, err.Error())
}
