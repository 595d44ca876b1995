package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-match/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	scanHandler := handlers.NewScanHandler(s.searcher, s.fs, s.jobManager, s.log)
	fingerprintHandler := handlers.NewFingerprintHandler(s.engine, s.fs, s.log)
	imageHandler := handlers.NewImageHandler(s.fs, s.config.Search.Extensions)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		// Fingerprints
		r.Post("/fingerprints", fingerprintHandler.Compute)

		// Scans (long-running operations)
		r.Get("/scans", scanHandler.List)
		r.Post("/scans", scanHandler.Start)
		r.Get("/scans/{jobId}", scanHandler.Status)
		r.Get("/scans/{jobId}/events", scanHandler.Events)
		r.Delete("/scans/{jobId}", scanHandler.Cancel)

		// Image viewing
		r.Get("/images", imageHandler.Get)
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex serves a placeholder page pointing at the API
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Photo Match</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
        code { background: #2a2a3e; padding: 2px 8px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Photo Match</h1>
        <p>Start a scan with <code>POST /api/v1/scans</code> and follow it at <code>/api/v1/scans/{id}/events</code>.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
