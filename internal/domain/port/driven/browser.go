package driven

import (
	"context"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

// PortalSession drives one logged-in browser session against the time-clock
// portal. It is owned by a single job and must not be shared.
type PortalSession interface {
	Login(ctx context.Context, cred model.Credential) error
	ClockIn(ctx context.Context, dryRun bool) (model.PunchReport, error)
	ClockOut(ctx context.Context, dryRun bool) (model.PunchReport, error)
}

// BrowserRunner provides scoped browser acquisition: the browser is launched
// before fn runs and is torn down on every exit path before WithSession
// returns. A launch failure returns *model.BrowserLaunchError without calling fn.
type BrowserRunner interface {
	WithSession(ctx context.Context, headless bool, fn func(PortalSession) error) error
}
