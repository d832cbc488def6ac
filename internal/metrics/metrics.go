// Package metrics defines and registers the Prometheus collectors for
// autopunch. It is the single source of truth for metric names, labels, and
// help strings. Collectors register with the default registry at init via
// promauto and are exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autopunch"

// ── Job metrics ───────────────────────────────────────────────────────────────

// JobsTotal counts finished job runs.
// Labels:
//   - action: "in" or "out"
//   - mode: "dry_run" or "live"
//   - result: "success" or "failure"
var JobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Total number of punch jobs run, by action, mode and result.",
	},
	[]string{"action", "mode", "result"},
)

// JobDuration measures a job run end to end, vault unlock included.
// Label:
//   - action: "in" or "out"
var JobDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of punch jobs from start to completion or failure.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	},
	[]string{"action"},
)

// ScheduledJobsMissed counts scheduled jobs dropped because they fired after
// the misfire grace period.
var ScheduledJobsMissed = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_jobs_missed_total",
		Help:      "Total number of scheduled jobs skipped for exceeding the misfire grace period.",
	},
)

// ── Vault and cache metrics ───────────────────────────────────────────────────

// VaultCommandsTotal counts vault CLI invocations.
// Labels:
//   - command: "status", "unlock", "get", "sync"
//   - result: "ok" or "error"
var VaultCommandsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vault_commands_total",
		Help:      "Total number of vault CLI invocations, by command and result.",
	},
	[]string{"command", "result"},
)

// CredentialCacheTotal counts credential cache lookups.
// Label:
//   - result: "hit" or "miss"
var CredentialCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_cache_total",
		Help:      "Total number of credential cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Browser metrics ───────────────────────────────────────────────────────────

// PunchStepsTotal counts outcomes of the best-effort punch steps.
// Labels:
//   - step: "overlay", "alert", "click_fallback"
//   - outcome: model.StepOutcome value, or "used" for click_fallback
var PunchStepsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "punch_steps_total",
		Help:      "Outcomes of non-fatal punch steps (overlay wait, alert acceptance, click fallback).",
	},
	[]string{"step", "outcome"},
)

// DiagnosticsCaptured counts screenshot/page-source captures by phase.
var DiagnosticsCaptured = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnostics_captured_total",
		Help:      "Total number of failure diagnostics captured, by phase.",
	},
	[]string{"phase"},
)

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequests counts API and dashboard requests.
// Labels:
//   - method: HTTP method
//   - route: the matched ServeMux pattern, or "unmatched"
//   - code: response status code
var HTTPRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, by method, route and status code.",
	},
	[]string{"method", "route", "code"},
)
