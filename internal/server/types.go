// Package server provides the HTTP control API for the recording session.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// SessionResponse is the HTTP representation of the recording session.
type SessionResponse struct {
	// State is the derived session state.
	State string `json:"state"`
	// IsRecording is true while capture is active.
	IsRecording bool `json:"isRecording"`
	// HasPermission is true once microphone access was granted.
	HasPermission bool `json:"hasPermission"`
	// AudioURI is the path of the held recording.
	AudioURI string `json:"audioUri,omitempty"`
	// IsPlaying is true while the recording plays back.
	IsPlaying bool `json:"isPlaying"`
	// Error is the user-facing message of the last failure.
	Error string `json:"error,omitempty"`
	// NoiseLevel is the display label of the last noise measurement.
	NoiseLevel string `json:"noiseLevel,omitempty"`
	// HeuristicsEnabled gates the loudness pre-check and denoising.
	HeuristicsEnabled bool `json:"heuristicsEnabled"`
	// Measurement is the last numeric noise reading.
	Measurement *MeasurementResponse `json:"measurement,omitempty"`
	// ArchiveURL is the archived copy of the recording.
	ArchiveURL string `json:"archiveUrl,omitempty"`
}

// MeasurementResponse is one ambient noise measurement.
type MeasurementResponse struct {
	// DB is the averaged level in decibels.
	DB float64 `json:"dB"`
	// NoiseLevel is "Quiet", "Moderate" or "Loud".
	NoiseLevel string `json:"noiseLevel"`
}

// HeuristicsRequest is the HTTP request body for toggling heuristics mode.
type HeuristicsRequest struct {
	// Enabled is required so that a missing field is not read as false.
	Enabled *bool `json:"enabled" validate:"required"`
}

// DenoiseRequest is the HTTP request body for cleaning a recording.
type DenoiseRequest struct {
	// Path is the recording to clean. file:// URIs are accepted.
	Path string `json:"path" validate:"required"`
}

// DenoiseResponse is the HTTP response after cleaning a recording.
type DenoiseResponse struct {
	// Path is the cleaned copy.
	Path string `json:"path"`
}

// AlertResponse is one user notification.
type AlertResponse struct {
	Severity string    `json:"severity"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

// AlertsResponse is the HTTP response for draining notifications.
type AlertsResponse struct {
	Alerts []AlertResponse `json:"alerts"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
