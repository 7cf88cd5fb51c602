package session

import "errors"

// Static errors for session operations. Collaborator failures are wrapped
// as "<sentinel>: <cause>" so both can be matched with errors.Is.
var (
	// ErrPermissionDenied is returned when microphone access is refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrInitialization is returned when the capture engine cannot be prepared.
	ErrInitialization = errors.New("audio initialization failed")
	// ErrStart is returned when capture does not start or is not confirmed active.
	ErrStart = errors.New("recording start failed")
	// ErrMeasurement is returned when ambient noise cannot be measured.
	ErrMeasurement = errors.New("noise measurement failed")
	// ErrStop is returned when capture cannot be stopped cleanly.
	ErrStop = errors.New("recording stop failed")
	// ErrDenoise is returned when the noise reduction pass fails.
	ErrDenoise = errors.New("noise reduction failed")
	// ErrPlayback is returned when the recording cannot be played or paused.
	ErrPlayback = errors.New("playback failed")
	// ErrDelete is returned when the recording cannot be removed.
	ErrDelete = errors.New("delete failed")
	// ErrTooNoisy is returned when the loudness pre-check rejects a start.
	ErrTooNoisy = errors.New("ambient noise too high")
	// ErrBusy is returned when a start or stop is already in flight.
	ErrBusy = errors.New("recording operation in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// User-facing messages stored in Session.Error and notifications.
const (
	MsgPermissionDenied = "Microphone permission not granted"
	MsgInitialization   = "Failed to initialize audio system"
	MsgStart            = "Failed to start recording"
	MsgNotConfirmed     = "Failed to start recording. Please try again."
	MsgTooNoisy         = "Noise level too high. Canceling recording."
	MsgMeasurement      = "Failed to measure noise"
	MsgStop             = "Failed to stop recording"
	MsgDenoise          = "Failed to remove background noise"
	MsgPlayback         = "Failed to play recording"
	MsgDelete           = "Failed to delete recording"
)
