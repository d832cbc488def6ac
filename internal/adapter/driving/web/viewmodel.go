package web

import (
	"time"

	vm "github.com/ericfisherdev/autopunch/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/autopunch/internal/application"
	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

const displayTime = "Mon 02 Jan 15:04"

func modeLabel(dryRun bool) string {
	if dryRun {
		return "dry run"
	}
	return "live"
}

func vaultStatusClass(s model.VaultStatus) string {
	switch s {
	case model.VaultStatusUnlocked:
		return "ok"
	case model.VaultStatusLocked, model.VaultStatusUnauthenticated:
		return "warn"
	default:
		return "bad"
	}
}

func jobStatusClass(s model.JobStatus) string {
	switch s {
	case model.JobStatusSucceeded:
		return "ok"
	case model.JobStatusPending, model.JobStatusRunning:
		return "info"
	case model.JobStatusMissed:
		return "warn"
	default:
		return "bad"
	}
}

func runStatusClass(s model.RunStatus) string {
	switch s {
	case model.RunStatusSucceeded:
		return "ok"
	case model.RunStatusRunning:
		return "info"
	default:
		return "bad"
	}
}

func toJobViewModel(j model.ScheduledJob, loc *time.Location) vm.JobViewModel {
	return vm.JobViewModel{
		ID:          j.ID,
		Name:        j.Name,
		NoteHTML:    RenderMarkdown(j.Note),
		ActionLabel: j.Action.Label(),
		RunAt:       j.RunAt.In(loc).Format(displayTime),
		Mode:        modeLabel(j.DryRun),
		Status:      string(j.Status),
		StatusClass: jobStatusClass(j.Status),
		LastError:   j.LastError,
		CanCancel:   j.Status != model.JobStatusRunning,
	}
}

func toRunViewModel(r model.JobRun, loc *time.Location) vm.RunViewModel {
	out := vm.RunViewModel{
		ID:          r.ID,
		ActionLabel: r.Action.Label(),
		Mode:        modeLabel(r.DryRun),
		Trigger:     string(r.Trigger),
		Status:      string(r.Status),
		StatusClass: runStatusClass(r.Status),
		Error:       r.Error,
		StartedAt:   r.StartedAt.In(loc).Format(displayTime),
	}
	if d := r.Duration(); d > 0 {
		out.Duration = d.Round(100 * time.Millisecond).String()
	}
	return out
}

func toWindowViewModels(now time.Time) []vm.WindowViewModel {
	actions := []model.Action{model.ActionClockIn, model.ActionClockOut}
	out := make([]vm.WindowViewModel, 0, len(actions))
	for _, a := range actions {
		advice := application.CheckWindow(a, now)
		out = append(out, vm.WindowViewModel{
			Label:    a.Label(),
			Start:    advice.WindowStart,
			End:      advice.WindowEnd,
			InWindow: advice.InWindow,
		})
	}
	return out
}
