// Package audio provides interfaces and implementations for converting
// recordings between containers.
package audio

import (
	"context"
	"errors"
)

// Static errors for transcoding.
var (
	// ErrSourceMissing is returned when the input file does not exist.
	ErrSourceMissing = errors.New("audio: source file does not exist")
	// ErrDurationUnknown is returned when ffmpeg reports no duration.
	ErrDurationUnknown = errors.New("audio: could not parse duration")
)

// PCMOpts configures decoding to PCM WAV.
type PCMOpts struct {
	// SampleRate in Hz. Zero keeps the source rate.
	SampleRate int
	// Channels is the output channel count. Zero keeps the source layout.
	Channels int
}

// Transcoder converts recordings between compressed containers and
// 16-bit PCM WAV.
type Transcoder interface {
	// DecodeToWAV decodes src into a 16-bit PCM WAV file at dst.
	DecodeToWAV(ctx context.Context, src, dst string, opts PCMOpts) error

	// EncodeAAC encodes the WAV file src into an AAC/M4A file at dst at
	// the given bit rate in bits per second.
	EncodeAAC(ctx context.Context, src, dst string, bitRate int) error

	// Duration returns the length of a media file in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}
