package browser

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ericfisherdev/autopunch/internal/metrics"
)

// Diagnostics writes a screenshot and page-source dump when the portal
// misbehaves, as <dir>/error_<phase>.png and <dir>/error_<phase>_source.html.
type Diagnostics struct {
	dir    string
	logger *slog.Logger
}

// NewDiagnostics returns a Diagnostics writing into dir.
func NewDiagnostics(dir string, logger *slog.Logger) *Diagnostics {
	return &Diagnostics{dir: dir, logger: logger}
}

// Capture records the current page. Failures are logged, never returned.
func (d *Diagnostics) Capture(ctx context.Context, drv driver, phase string) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Error("create diagnostics dir", "dir", d.dir, "error", err)
		return
	}
	metrics.DiagnosticsCaptured.WithLabelValues(phase).Inc()

	// Diagnostics must be captured even if the job context is already done.
	ctx = context.WithoutCancel(ctx)

	shotPath := filepath.Join(d.dir, "error_"+phase+".png")
	if shot, err := drv.Screenshot(ctx); err != nil {
		d.logger.Error("capture screenshot", "phase", phase, "error", err)
	} else if err := os.WriteFile(shotPath, shot, 0o644); err != nil {
		d.logger.Error("write screenshot", "path", shotPath, "error", err)
	} else {
		d.logger.Info("screenshot saved", "path", shotPath)
	}

	sourcePath := filepath.Join(d.dir, "error_"+phase+"_source.html")
	if src, err := drv.PageSource(ctx); err != nil {
		d.logger.Error("capture page source", "phase", phase, "error", err)
	} else if err := os.WriteFile(sourcePath, []byte(src), 0o644); err != nil {
		d.logger.Error("write page source", "path", sourcePath, "error", err)
	} else {
		d.logger.Info("page source saved", "path", sourcePath)
	}
}
