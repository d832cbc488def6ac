package model

// StepOutcome is the result of a best-effort browser step whose failure must
// not abort the job (overlay dismissal, alert acceptance).
type StepOutcome string

const (
	StepFound    StepOutcome = "found"
	StepNotFound StepOutcome = "not_found"
	StepError    StepOutcome = "error"
	StepSkipped  StepOutcome = "skipped"
)

// PunchReport describes how far the punch routine progressed.
type PunchReport struct {
	Action       Action
	DryRun       bool
	Overlay      StepOutcome // overlay became invisible (found) or timed out (not_found)
	Clicked      bool
	FallbackUsed bool // script click after an intercepted native click
	Alert        StepOutcome
}

// WindowAdvice is the advisory result of the punch time-window check.
type WindowAdvice struct {
	Action      Action
	Known       bool
	InWindow    bool
	Now         string // HH:MM
	WindowStart string // HH:MM
	WindowEnd   string // HH:MM
}
