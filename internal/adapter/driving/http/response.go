package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// VaultStatusResponse reports the vault state together with what the service
// holds for unattended runs.
type VaultStatusResponse struct {
	Status           string `json:"status"`
	SecretHeld       bool   `json:"secret_held"`
	SecretExpiresAt  string `json:"secret_expires_at,omitempty"`
	CredentialCached bool   `json:"credential_cached"`
}

// UnlockRequest is the JSON body for the vault unlock endpoint.
type UnlockRequest struct {
	MasterSecret string `json:"master_secret" validate:"required"`
}

// RunJobRequest is the JSON body for the run-now endpoint. DryRun is a
// pointer so an omitted field is rejected instead of defaulting to a live click.
type RunJobRequest struct {
	Action       string `json:"action" validate:"required,oneof=in out clock_in clock_out"`
	DryRun       *bool  `json:"dry_run" validate:"required"`
	Headless     bool   `json:"headless"`
	MasterSecret string `json:"master_secret"`
}

// RunJobResponse is returned after a successful run-now.
type RunJobResponse struct {
	Action   string `json:"action"`
	DryRun   bool   `json:"dry_run"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
}

// ScheduleJobRequest is the JSON body for the schedule endpoint.
type ScheduleJobRequest struct {
	Action   string    `json:"action" validate:"required,oneof=in out clock_in clock_out"`
	RunAt    time.Time `json:"run_at" validate:"required"`
	DryRun   *bool     `json:"dry_run" validate:"required"`
	Headless bool      `json:"headless"`
	Name     string    `json:"name" validate:"max=100"`
	Note     string    `json:"note" validate:"max=2000"`
}

// JobResponse is the JSON representation of a scheduled job.
type JobResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Note      string `json:"note"`
	Action    string `json:"action"`
	DryRun    bool   `json:"dry_run"`
	Headless  bool   `json:"headless"`
	RunAt     string `json:"run_at"`
	Status    string `json:"status"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// RunResponse is the JSON representation of one job run.
type RunResponse struct {
	ID         int64  `json:"id"`
	JobID      string `json:"job_id,omitempty"`
	Action     string `json:"action"`
	DryRun     bool   `json:"dry_run"`
	Trigger    string `json:"trigger"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func toJobResponse(j model.ScheduledJob) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Name:      j.Name,
		Note:      j.Note,
		Action:    string(j.Action),
		DryRun:    j.DryRun,
		Headless:  j.Headless,
		RunAt:     j.RunAt.UTC().Format(time.RFC3339),
		Status:    string(j.Status),
		LastError: j.LastError,
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toRunResponse(r model.JobRun) RunResponse {
	resp := RunResponse{
		ID:         r.ID,
		JobID:      r.JobID,
		Action:     string(r.Action),
		DryRun:     r.DryRun,
		Trigger:    string(r.Trigger),
		Status:     string(r.Status),
		Error:      r.Error,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		DurationMS: r.Duration().Milliseconds(),
	}
	if !r.FinishedAt.IsZero() {
		resp.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
