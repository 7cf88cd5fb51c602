package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/maauso/audioheuristics/internal/audio"
	"github.com/maauso/audioheuristics/internal/session/id"
)

// DeviceRecorder implements Recorder on the default capture device.
// Audio is written as 16-bit PCM WAV while recording; M4A recordings are
// encoded from that WAV when capture stops.
type DeviceRecorder struct {
	mctx       *Context
	dir        string
	transcoder audio.Transcoder
	newName    func() string
	logger     *slog.Logger

	mu        sync.Mutex
	format    Format
	prepared  bool
	recording bool
	device    *malgo.Device
	file      *os.File
	enc       *wav.Encoder
	path      string
	level     float64
	hasLevel  bool
	writeErr  error
	scratch   []int
}

// RecorderOption configures a DeviceRecorder.
type RecorderOption func(*DeviceRecorder)

// WithTranscoder enables the M4A container.
func WithTranscoder(t audio.Transcoder) RecorderOption {
	return func(r *DeviceRecorder) {
		r.transcoder = t
	}
}

// WithNamer overrides how recording file names are generated.
func WithNamer(fn func() string) RecorderOption {
	return func(r *DeviceRecorder) {
		if fn != nil {
			r.newName = fn
		}
	}
}

// WithRecorderLogger sets the logger.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *DeviceRecorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewDeviceRecorder creates a recorder that stores files in dir.
func NewDeviceRecorder(mctx *Context, dir string, opts ...RecorderOption) *DeviceRecorder {
	r := &DeviceRecorder{
		mctx:    mctx,
		dir:     dir,
		newName: id.Generate,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prepare implements Recorder.Prepare.
func (r *DeviceRecorder) Prepare(_ context.Context, f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Container == ContainerM4A && r.transcoder == nil {
		return fmt.Errorf("%w: m4a requires a transcoder", ErrInvalidFormat)
	}
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return fmt.Errorf("create recordings directory: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	r.format = f
	r.prepared = true
	return nil
}

// Start implements Recorder.Start.
func (r *DeviceRecorder) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.prepared {
		return ErrNotPrepared
	}
	if r.recording {
		return ErrAlreadyRecording
	}

	path := filepath.Join(r.dir, r.newName()+".wav")
	f, err := os.Create(path) // #nosec G304 - path is built from the recordings directory
	if err != nil {
		return fmt.Errorf("create recording file: %w", err)
	}

	enc := wav.NewEncoder(f, r.format.SampleRate, 16, r.format.Channels, 1)
	dev, err := r.mctx.openCapture(r.format, r.onInput)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}

	r.file, r.enc, r.device, r.path = f, enc, dev, path
	r.hasLevel, r.writeErr = false, nil
	r.recording = true

	if err := dev.Start(); err != nil {
		r.recording = false
		dev.Uninit()
		_ = f.Close()
		_ = os.Remove(path)
		r.device, r.file, r.enc, r.path = nil, nil, nil, ""
		return fmt.Errorf("start capture device: %w", err)
	}

	r.logger.Info("recording started",
		slog.String("path", path),
		slog.Int("sample_rate", r.format.SampleRate),
		slog.Int("channels", r.format.Channels),
	)
	return nil
}

// onInput runs on the audio thread.
func (r *DeviceRecorder) onInput(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}

	if db, ok := AveragePowerS16(pcm); ok {
		r.level, r.hasLevel = db, true
	}
	if r.writeErr != nil {
		return
	}
	r.scratch = DecodeS16(pcm, r.scratch[:0])
	r.writeErr = r.enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: r.format.Channels, SampleRate: r.format.SampleRate},
		Data:           r.scratch,
		SourceBitDepth: 16,
	})
}

// Status implements Recorder.Status.
func (r *DeviceRecorder) Status(_ context.Context) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		CanRecord:   r.prepared && !r.recording,
		IsRecording: r.recording,
	}
	if r.recording && r.hasLevel {
		level := r.level
		st.Metering = &level
	}
	return st, nil
}

// Stop implements Recorder.Stop.
func (r *DeviceRecorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return "", ErrNotRecording
	}
	// The audio callback takes mu, so the device is stopped unlocked.
	r.recording = false
	dev := r.device
	r.device = nil
	r.mu.Unlock()

	stopErr := dev.Stop()
	dev.Uninit()

	r.mu.Lock()
	enc, f, path, writeErr := r.enc, r.file, r.path, r.writeErr
	format := r.format
	r.enc, r.file, r.path = nil, nil, ""
	r.prepared = false
	r.mu.Unlock()

	closeErr := enc.Close()
	if err := f.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if err := errors.Join(stopErr, writeErr, closeErr); err != nil {
		return "", fmt.Errorf("finalize recording %s: %w", path, err)
	}

	if format.Container == ContainerM4A {
		m4a, err := encodeM4A(ctx, r.transcoder, path, format.BitRate, r.logger)
		if err != nil {
			return "", err
		}
		path = m4a
	}

	r.logger.Info("recording stopped", slog.String("path", path))
	return path, nil
}

// encodeM4A encodes the captured WAV next to itself and removes it.
// The encoded length is probed for the log only.
func encodeM4A(ctx context.Context, t audio.Transcoder, wavPath string, bitRate int, logger *slog.Logger) (string, error) {
	m4a := strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".m4a"
	if err := t.EncodeAAC(ctx, wavPath, m4a, bitRate); err != nil {
		return "", fmt.Errorf("encode recording: %w", err)
	}
	_ = os.Remove(wavPath)

	seconds, err := t.Duration(ctx, m4a)
	if err != nil {
		logger.Warn("failed to probe recording duration",
			slog.String("path", m4a),
			slog.String("error", err.Error()),
		)
		return m4a, nil
	}
	logger.Info("recording encoded",
		slog.String("path", m4a),
		slog.Float64("duration_sec", seconds),
		slog.Int("bit_rate", bitRate),
	)
	return m4a, nil
}

// Close stops an active recording, discarding errors.
func (r *DeviceRecorder) Close() error {
	r.mu.Lock()
	recording := r.recording
	r.mu.Unlock()
	if recording {
		_, _ = r.Stop(context.Background())
	}
	return nil
}

// Verify interface implementation at compile time.
var _ Recorder = (*DeviceRecorder)(nil)
