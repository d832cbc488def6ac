// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// DashboardViewModel holds everything the single dashboard page renders.
type DashboardViewModel struct {
	CSRFToken string
	Flash     FlashViewModel
	Vault     VaultViewModel
	Window    []WindowViewModel
	Jobs      []JobViewModel
	Runs      []RunViewModel
}

// FlashViewModel is the one-shot message shown after a form post.
type FlashViewModel struct {
	Message string
	IsError bool
}

// VaultViewModel describes the vault and credential state.
type VaultViewModel struct {
	Status           string
	StatusClass      string // "ok", "warn" or "bad"
	SecretHeld       bool
	SecretExpiresAt  string
	CredentialCached bool
}

// WindowViewModel shows one punch window and whether now falls inside it.
type WindowViewModel struct {
	Label    string
	Start    string
	End      string
	InWindow bool
}

// JobViewModel holds presentation-ready data for a scheduled job row.
type JobViewModel struct {
	ID          string
	Name        string
	NoteHTML    string
	ActionLabel string
	RunAt       string
	Mode        string
	Status      string
	StatusClass string
	LastError   string
	CanCancel   bool
}

// RunViewModel holds presentation-ready data for a job run row.
type RunViewModel struct {
	ID          int64
	ActionLabel string
	Mode        string
	Trigger     string
	Status      string
	StatusClass string
	Error       string
	StartedAt   string
	Duration    string
}
