package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/focuserd/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Read-only queries are open to any caller.
		r.Get("/status", s.handleStatus)
		r.Get("/temperature-labels", s.handleTemperatureLabels)
		r.Get("/history", s.handleHistory)
		r.Get("/ws", s.handleWebSocket)

		// Commands carry the caller address for the control allowlist.
		r.Group(func(r chi.Router) {
			r.Use(s.callerMiddleware)

			r.Post("/initialize", s.handleInitialize)
			r.Post("/home", s.handleHome)
			r.Post("/shutdown", s.handleShutdown)
			r.Post("/stop", s.handleStop)
			r.Post("/light", s.handleLight)
			r.Post("/channels/{channel}/position", s.handleSetPosition)
		})
	})

	r.Handle("/*", panel.Handler(s.cfg.PanelDir))

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
