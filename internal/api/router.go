package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// The flat route layout mirrors what the camera firmware and dashboard
// already call; renaming under an /api/v1 prefix would orphan deployed
// devices.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Detection ingestion (camera firmware)
	r.Post("/detect", s.handleDetect)

	// Dashboard and gate controls (humans)
	r.Get("/log", s.handleDashboard)
	r.Post("/toggle_brightness", s.handleToggleBrightness)
	r.Get("/brightness_status", s.handleBrightnessStatus)

	// Thermometer snapshot
	r.Get("/api/thermometers", s.handleThermometers)

	// Stored frames
	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(http.Dir(s.cfg.Storage.FramesDir))))

	// Health check
	r.Get("/health", s.handleHealth)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
