package browser

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
)

// Options configures browser sessions.
type Options struct {
	PortalURL  string
	ChromePath string // empty uses the system Chrome
	OutputDir  string // diagnostics destination
	Timeouts   Timeouts
}

// Runner implements driven.BrowserRunner. Every session gets its own browser
// process.
type Runner struct {
	opts   Options
	diag   *Diagnostics
	logger *slog.Logger
	launch func(ctx context.Context, headless bool) (driver, error)
}

var _ driven.BrowserRunner = (*Runner)(nil)

// NewRunner returns a Runner that launches Chrome.
func NewRunner(opts Options, logger *slog.Logger) *Runner {
	r := &Runner{
		opts:   opts,
		diag:   NewDiagnostics(opts.OutputDir, logger),
		logger: logger,
	}
	r.launch = func(ctx context.Context, headless bool) (driver, error) {
		return launchChrome(ctx, opts.ChromePath, headless, logger)
	}
	return r
}

// WithSession launches a browser, hands fn a fresh portal session, and
// terminates the browser before returning, whichever way fn exits.
func (r *Runner) WithSession(ctx context.Context, headless bool, fn func(driven.PortalSession) error) error {
	drv, err := r.launch(ctx, headless)
	if err != nil {
		r.logger.Error("browser launch failed", "error", err)
		return &model.BrowserLaunchError{Err: err}
	}
	defer func() {
		if err := drv.Close(); err != nil {
			r.logger.Warn("browser close failed", "error", err)
			return
		}
		r.logger.Info("browser closed")
	}()

	return fn(newPortal(drv, r.opts.PortalURL, r.opts.Timeouts, r.diag, r.logger))
}
