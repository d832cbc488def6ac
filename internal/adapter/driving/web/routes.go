package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Web routes serve HTML at / and form posts under /app/*.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Page routes.
	mux.HandleFunc("GET /{$}", h.Dashboard)

	// Form posts, all CSRF-protected.
	mux.HandleFunc("POST /app/vault/unlock", requireCSRF(h.UnlockVault))
	mux.HandleFunc("POST /app/vault/lock", requireCSRF(h.LockVault))
	mux.HandleFunc("POST /app/jobs/run", requireCSRF(h.RunNow))
	mux.HandleFunc("POST /app/jobs", requireCSRF(h.ScheduleJob))
	mux.HandleFunc("POST /app/jobs/cancel", requireCSRF(h.CancelJob))
	mux.HandleFunc("POST /app/cache/clear", requireCSRF(h.ClearCache))
}
