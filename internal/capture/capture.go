// Package capture provides the platform audio boundary: microphone
// permission, recording, playback and instantaneous level metering.
// It defines the ports consumed by the session controller and miniaudio
// based implementations of them.
package capture

import (
	"context"
	"errors"
	"fmt"
)

// Supported recording containers.
const (
	ContainerWAV = "wav"
	ContainerM4A = "m4a"
)

// Static errors for capture operations.
var (
	// ErrNotPrepared is returned when Start is called before Prepare.
	ErrNotPrepared = errors.New("capture: recorder not prepared")
	// ErrAlreadyRecording is returned when Start is called twice.
	ErrAlreadyRecording = errors.New("capture: already recording")
	// ErrNotRecording is returned when Stop is called without an active capture.
	ErrNotRecording = errors.New("capture: not recording")
	// ErrInvalidFormat is returned when a Format cannot be captured.
	ErrInvalidFormat = errors.New("capture: invalid format")
	// ErrNothingToPlay is returned when Play is called with an empty path.
	ErrNothingToPlay = errors.New("capture: nothing to play")
)

// Format describes how a recording is captured and stored.
type Format struct {
	// SampleRate in Hz.
	SampleRate int
	// Channels is 1 (mono) or 2 (stereo).
	Channels int
	// BitRate in bits per second. Only used for compressed containers.
	BitRate int
	// Container is ContainerWAV or ContainerM4A.
	Container string
}

// HighQuality mirrors the default preset for voice memos:
// 44.1 kHz stereo at 128 kbps.
func HighQuality() Format {
	return Format{
		SampleRate: 44100,
		Channels:   2,
		BitRate:    128000,
		Container:  ContainerWAV,
	}
}

// AmbientFormat is the fixed format used for ambient noise sampling.
func AmbientFormat() Format {
	return Format{
		SampleRate: 44100,
		Channels:   1,
		Container:  ContainerWAV,
	}
}

// Validate checks that the format can be captured.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: channels %d", ErrInvalidFormat, f.Channels)
	}
	switch f.Container {
	case ContainerWAV:
	case ContainerM4A:
		if f.BitRate <= 0 {
			return fmt.Errorf("%w: bit rate %d", ErrInvalidFormat, f.BitRate)
		}
	default:
		return fmt.Errorf("%w: container %q", ErrInvalidFormat, f.Container)
	}
	return nil
}

// Status is a point-in-time view of the recorder.
type Status struct {
	// CanRecord is true when the recorder is prepared and idle.
	CanRecord bool
	// IsRecording is true while capture is active.
	IsRecording bool
	// Metering is the latest level in dBFS, nil when unavailable.
	Metering *float64
}

// Permissions grants or denies microphone access.
type Permissions interface {
	// Request asks for microphone access and reports whether it was granted.
	Request(ctx context.Context) (bool, error)
}

// Recorder captures audio from the microphone into a file.
type Recorder interface {
	// Prepare configures the recorder for the given format.
	Prepare(ctx context.Context, f Format) error
	// Start begins capture. Prepare must have been called.
	Start(ctx context.Context) error
	// Status reports the recorder state.
	Status(ctx context.Context) (Status, error)
	// Stop ends capture and returns the path of the produced file.
	// The recorder must be prepared again before the next Start.
	Stop(ctx context.Context) (string, error)
}

// Player plays back a finished recording.
type Player interface {
	// Play starts or resumes playback of path. onFinish, when non-nil, is
	// called once if playback reaches the end of the file.
	Play(ctx context.Context, path string, onFinish func()) error
	// Pause halts playback, keeping the position.
	Pause(ctx context.Context) error
}

// StaticPermissions answers every request with a fixed result.
type StaticPermissions bool

// Request implements Permissions.
func (p StaticPermissions) Request(_ context.Context) (bool, error) {
	return bool(p), nil
}

// Verify interface implementation at compile time.
var _ Permissions = StaticPermissions(true)
