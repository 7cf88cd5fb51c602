// Package session provides the recording session controller: a state
// machine over the capture engine that coordinates permission checks,
// starts and stops capture, classifies ambient noise and hands finished
// recordings to the denoiser.
package session

import (
	"github.com/maauso/audioheuristics/internal/noise"
)

// State is the observable state of a recording session.
// It is derived from the session fields, never stored.
type State string

const (
	// StateIdle indicates no recording, no artifact and no error.
	StateIdle State = "IDLE"
	// StatePermissionPending indicates a microphone permission request is in flight.
	StatePermissionPending State = "PERMISSION_PENDING"
	// StateRecording indicates capture is active.
	StateRecording State = "RECORDING"
	// StateStopped indicates a finished recording is held.
	StateStopped State = "STOPPED"
	// StatePlaying indicates the held recording is playing.
	StatePlaying State = "PLAYING"
	// StateError indicates the last operation failed and nothing is held.
	StateError State = "ERROR"
)

// Session is a point-in-time snapshot of the recording session.
type Session struct {
	// State is derived from the fields below.
	State State
	// IsRecording is true while capture is active.
	IsRecording bool
	// HasPermission is true once microphone access was granted.
	HasPermission bool
	// AudioURI is the path of the finished recording, empty while recording.
	AudioURI string
	// IsPlaying is true while the recording plays back.
	IsPlaying bool
	// Error is the user-facing message of the last failure.
	Error string
	// NoiseLevel is the display label of the last noise measurement.
	NoiseLevel string
	// HeuristicsEnabled gates the loudness pre-check and denoising.
	HeuristicsEnabled bool
	// Measurement is the last numeric noise reading, nil when cleared.
	Measurement *noise.Measurement
	// ArchiveURL is set when the recording was archived.
	ArchiveURL string
}

// HasArtifact reports whether a finished recording is held.
func (s Session) HasArtifact() bool {
	return s.AudioURI != ""
}

// deriveState computes the state from the session fields. pending is true
// while a permission request is in flight.
func deriveState(s Session, pending bool) State {
	switch {
	case pending:
		return StatePermissionPending
	case s.IsRecording:
		return StateRecording
	case s.IsPlaying:
		return StatePlaying
	case s.HasArtifact():
		return StateStopped
	case s.Error != "":
		return StateError
	default:
		return StateIdle
	}
}
