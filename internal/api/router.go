package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)

			// WS ticket requires a session - anonymous viewers get one too
			// when anonymous read is enabled
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Layout endpoints
			r.Route("/layout", func(r chi.Router) {
				r.Get("/", s.handleGetLayout)
				r.Get("/versions", s.handleListVersions)

				r.Group(func(r chi.Router) {
					r.Use(s.requireEditor)
					r.Post("/revert", s.handleRevert)
				})
			})

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	bridgeStatus := "disabled"
	if s.bridge != nil {
		if s.bridge.IsConnected() {
			bridgeStatus = "connected"
		} else {
			bridgeStatus = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"layout_version": s.coordinator.Version(),
		"bridge":         bridgeStatus,
		"clients":        s.hub.ClientCount(),
	})
}
