// Package application contains use-case orchestration services.
package application

import (
	"log/slog"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

// punchWindow is a recommended punch range as offsets from local midnight.
// Both bounds are inclusive.
type punchWindow struct {
	start, end time.Duration
}

var punchWindows = map[model.Action]punchWindow{
	model.ActionClockIn:  {start: 8*time.Hour + 45*time.Minute, end: 9 * time.Hour},
	model.ActionClockOut: {start: 18 * time.Hour, end: 20 * time.Hour},
}

func formatOffset(d time.Duration) string {
	return time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format("15:04")
}

// CheckWindow reports whether now falls inside the recommended window for
// action, compared to the second on the wall clock. It does not log.
func CheckWindow(action model.Action, now time.Time) model.WindowAdvice {
	advice := model.WindowAdvice{Action: action, Now: now.Format("15:04")}

	w, ok := punchWindows[action]
	if !ok {
		return advice
	}

	h, m, sec := now.Clock()
	offset := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second

	advice.Known = true
	advice.WindowStart = formatOffset(w.start)
	advice.WindowEnd = formatOffset(w.end)
	advice.InWindow = offset >= w.start && offset <= w.end
	return advice
}

// AdviseTime runs CheckWindow and logs the result. It is advisory only;
// callers proceed regardless.
func AdviseTime(logger *slog.Logger, action model.Action, now time.Time) model.WindowAdvice {
	advice := CheckWindow(action, now)

	switch {
	case !advice.Known:
		logger.Warn("unknown punch action, skipping time check", "action", string(action))
	case advice.InWindow:
		logger.Info("current time is inside the recommended window", "action", action.Label())
	default:
		logger.Warn("current time is outside the recommended window",
			"action", action.Label(),
			"now", advice.Now,
			"window", advice.WindowStart+"-"+advice.WindowEnd,
		)
	}
	return advice
}
