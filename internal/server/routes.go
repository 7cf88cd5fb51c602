package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /session", h.GetSession)
	mux.HandleFunc("POST /session/init", h.InitSession)
	mux.HandleFunc("POST /session/recording/start", h.StartRecording)
	mux.HandleFunc("POST /session/recording/stop", h.StopRecording)
	mux.HandleFunc("POST /session/recording/toggle", h.ToggleRecording)
	mux.HandleFunc("DELETE /session/recording", h.DeleteRecording)
	mux.HandleFunc("POST /session/playback/toggle", h.TogglePlayback)
	mux.HandleFunc("PUT /session/heuristics", h.SetHeuristics)
	mux.HandleFunc("POST /session/noise", h.MeasureNoise)
	mux.HandleFunc("GET /session/alerts", h.Alerts)

	mux.HandleFunc("POST /denoise", h.Denoise)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
