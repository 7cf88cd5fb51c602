package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/audioheuristics/internal/capture"
	"github.com/maauso/audioheuristics/internal/denoise"
	"github.com/maauso/audioheuristics/internal/noise"
	"github.com/maauso/audioheuristics/internal/session"
)

// SessionController is the recording session driven by the API.
type SessionController interface {
	Snapshot() session.Session
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ToggleRecord(ctx context.Context) error
	TogglePlayback(ctx context.Context) error
	Delete(ctx context.Context) error
	SetHeuristics(enabled bool)
	MeasureNoise(ctx context.Context) (noise.Measurement, error)
}

// Verify interface implementation at compile time.
var _ SessionController = (*session.Controller)(nil)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	ctrl      SessionController
	denoiser  denoise.Denoiser
	alerts    *AlertQueue
	validator *validator.Validate
	logger    *slog.Logger
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithDenoiser enables POST /denoise.
func WithDenoiser(d denoise.Denoiser) HandlerOption {
	return func(h *Handlers) {
		h.denoiser = d
	}
}

// WithAlerts sets the queue served by GET /session/alerts.
func WithAlerts(q *AlertQueue) HandlerOption {
	return func(h *Handlers) {
		h.alerts = q
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctrl SessionController, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		ctrl:      ctrl,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GetSession handles GET /session requests.
func (h *Handlers) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.ctrl.Snapshot()))
}

// InitSession handles POST /session/init requests.
func (h *Handlers) InitSession(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "init", h.ctrl.Init)
}

// StartRecording handles POST /session/recording/start requests.
func (h *Handlers) StartRecording(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "start", h.ctrl.Start)
}

// StopRecording handles POST /session/recording/stop requests.
func (h *Handlers) StopRecording(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "stop", h.ctrl.Stop)
}

// ToggleRecording handles POST /session/recording/toggle requests.
func (h *Handlers) ToggleRecording(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "toggle_record", h.ctrl.ToggleRecord)
}

// DeleteRecording handles DELETE /session/recording requests.
func (h *Handlers) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "delete", h.ctrl.Delete)
}

// TogglePlayback handles POST /session/playback/toggle requests.
func (h *Handlers) TogglePlayback(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "toggle_playback", h.ctrl.TogglePlayback)
}

// SetHeuristics handles PUT /session/heuristics requests.
func (h *Handlers) SetHeuristics(w http.ResponseWriter, r *http.Request) {
	var req HeuristicsRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.ctrl.SetHeuristics(*req.Enabled)
	writeJSON(w, http.StatusOK, toSessionResponse(h.ctrl.Snapshot()))
}

// MeasureNoise handles POST /session/noise requests.
func (h *Handlers) MeasureNoise(w http.ResponseWriter, r *http.Request) {
	m, err := h.ctrl.MeasureNoise(context.WithoutCancel(r.Context()))
	if err != nil {
		h.writeSessionError(w, "measure_noise", err)
		return
	}
	writeJSON(w, http.StatusOK, MeasurementResponse{DB: m.DB, NoiseLevel: string(m.Level)})
}

// Denoise handles POST /denoise requests.
func (h *Handlers) Denoise(w http.ResponseWriter, r *http.Request) {
	if h.denoiser == nil {
		writeError(w, http.StatusServiceUnavailable, "noise reduction is not available", "DENOISE_UNAVAILABLE")
		return
	}

	var req DenoiseRequest
	if !h.decode(w, r, &req) {
		return
	}

	cleaned, err := h.denoiser.Denoise(context.WithoutCancel(r.Context()), req.Path)
	if err != nil {
		h.logger.Error("failed to remove background noise",
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, denoise.ErrOpenSource):
			writeError(w, http.StatusBadRequest, "cannot open source recording", "SOURCE_UNREADABLE")
		case errors.Is(err, denoise.ErrProcess):
			writeError(w, http.StatusUnprocessableEntity, "cannot process recording", "PROCESS_FAILED")
		default:
			writeError(w, http.StatusInternalServerError, session.MsgDenoise, "DENOISE_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusOK, DenoiseResponse{Path: cleaned})
}

// Alerts handles GET /session/alerts requests.
func (h *Handlers) Alerts(w http.ResponseWriter, _ *http.Request) {
	resp := AlertsResponse{Alerts: []AlertResponse{}}
	if h.alerts != nil {
		for _, n := range h.alerts.Drain() {
			resp.Alerts = append(resp.Alerts, AlertResponse{
				Severity: string(n.Severity),
				Title:    n.Title,
				Message:  n.Message,
				Time:     n.Time,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// runAction runs a session operation and responds with the resulting
// session. Operations outlive the request: a client disconnect must not
// abandon a stop halfway.
func (h *Handlers) runAction(w http.ResponseWriter, r *http.Request, name string, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(r.Context())); err != nil {
		h.writeSessionError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.ctrl.Snapshot()))
}

// decode reads and validates a JSON body. It writes the error response
// and returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// errorMapping maps a session error to its HTTP response.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// sessionErrors is checked in order; the first match wins.
var sessionErrors = []errorMapping{
	{session.ErrBusy, http.StatusConflict, "OPERATION_IN_PROGRESS", "a recording operation is already in progress"},
	{capture.ErrAlreadyRecording, http.StatusConflict, "ALREADY_RECORDING", "already recording"},
	{capture.ErrNotRecording, http.StatusConflict, "NOT_RECORDING", "not recording"},
	{session.ErrClosed, http.StatusServiceUnavailable, "SESSION_CLOSED", "session closed"},
	{session.ErrPermissionDenied, http.StatusForbidden, "PERMISSION_DENIED", session.MsgPermissionDenied},
	{session.ErrTooNoisy, http.StatusUnprocessableEntity, "TOO_NOISY", session.MsgTooNoisy},
	{session.ErrInitialization, http.StatusInternalServerError, "INITIALIZATION_FAILED", session.MsgInitialization},
	{session.ErrMeasurement, http.StatusInternalServerError, "MEASUREMENT_FAILED", session.MsgMeasurement},
	{session.ErrStart, http.StatusInternalServerError, "START_FAILED", session.MsgStart},
	{session.ErrStop, http.StatusInternalServerError, "STOP_FAILED", session.MsgStop},
	{session.ErrDenoise, http.StatusInternalServerError, "DENOISE_FAILED", session.MsgDenoise},
	{session.ErrPlayback, http.StatusInternalServerError, "PLAYBACK_FAILED", session.MsgPlayback},
	{session.ErrDelete, http.StatusInternalServerError, "DELETE_FAILED", session.MsgDelete},
}

func (h *Handlers) writeSessionError(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("session operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	for _, m := range sessionErrors {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.message, m.code)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}

func toSessionResponse(s session.Session) SessionResponse {
	resp := SessionResponse{
		State:             string(s.State),
		IsRecording:       s.IsRecording,
		HasPermission:     s.HasPermission,
		AudioURI:          s.AudioURI,
		IsPlaying:         s.IsPlaying,
		Error:             s.Error,
		NoiseLevel:        s.NoiseLevel,
		HeuristicsEnabled: s.HeuristicsEnabled,
		ArchiveURL:        s.ArchiveURL,
	}
	if s.Measurement != nil {
		resp.Measurement = &MeasurementResponse{
			DB:         s.Measurement.DB,
			NoiseLevel: string(s.Measurement.Level),
		}
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
