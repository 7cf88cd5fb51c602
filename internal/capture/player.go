package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-audio/wav"

	"github.com/maauso/audioheuristics/internal/audio"
)

// playbackDevice is the part of *malgo.Device the player drives.
type playbackDevice interface {
	Start() error
	Stop() error
	Uninit()
}

// DevicePlayer implements Player on the default playback device.
// The whole recording is decoded to 16-bit PCM in memory when a new path
// is played; playing the same path again resumes where it paused.
type DevicePlayer struct {
	mctx       *Context
	transcoder audio.Transcoder
	logger     *slog.Logger

	// ctlMu orders device Start and Stop calls. The audio callback never
	// takes it.
	ctlMu sync.Mutex

	mu       sync.Mutex
	path     string
	pcm      []byte
	pos      int
	device   playbackDevice
	playing  bool
	onFinish func()
}

// PlayerOption configures a DevicePlayer.
type PlayerOption func(*DevicePlayer)

// WithPlayerTranscoder enables playback of non-WAV recordings.
func WithPlayerTranscoder(t audio.Transcoder) PlayerOption {
	return func(p *DevicePlayer) {
		p.transcoder = t
	}
}

// WithPlayerLogger sets the logger.
func WithPlayerLogger(logger *slog.Logger) PlayerOption {
	return func(p *DevicePlayer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewDevicePlayer creates a DevicePlayer over mctx.
func NewDevicePlayer(mctx *Context, opts ...PlayerOption) *DevicePlayer {
	p := &DevicePlayer{
		mctx:   mctx,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play implements Player.Play.
func (p *DevicePlayer) Play(ctx context.Context, path string, onFinish func()) error {
	if path == "" {
		return ErrNothingToPlay
	}

	p.ctlMu.Lock()
	defer p.ctlMu.Unlock()

	p.mu.Lock()
	if p.playing && p.path == path {
		p.mu.Unlock()
		return nil
	}
	loaded := p.path == path && p.device != nil
	p.mu.Unlock()

	if !loaded {
		if err := p.load(ctx, path); err != nil {
			return err
		}
	}

	return p.resumeLocked(onFinish)
}

// resumeLocked starts the loaded device. ctlMu must be held.
func (p *DevicePlayer) resumeLocked(onFinish func()) error {
	p.mu.Lock()
	if p.pos >= len(p.pcm) {
		p.pos = 0
	}
	p.onFinish = onFinish
	p.playing = true
	dev := p.device
	p.mu.Unlock()

	// Some backends run the callback from Start, so mu is not held here.
	if err := dev.Start(); err != nil {
		p.mu.Lock()
		p.playing = false
		p.onFinish = nil
		p.mu.Unlock()
		return fmt.Errorf("start playback device: %w", err)
	}
	return nil
}

// load decodes path and replaces the current playback device.
func (p *DevicePlayer) load(ctx context.Context, path string) error {
	pcm, sampleRate, channels, err := p.decode(ctx, path)
	if err != nil {
		return err
	}

	p.release()

	dev, err := p.mctx.openPlayback(sampleRate, channels, p.fill)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.path, p.pcm, p.pos, p.device = path, pcm, 0, dev
	p.mu.Unlock()

	p.logger.Debug("playback loaded",
		slog.String("path", path),
		slog.Int("sample_rate", sampleRate),
		slog.Int("channels", channels),
	)
	return nil
}

// fill runs on the audio thread.
func (p *DevicePlayer) fill(out []byte) {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		clear(out)
		return
	}
	n := copy(out, p.pcm[p.pos:])
	p.pos += n
	clear(out[n:])

	var finished func()
	done := p.pos >= len(p.pcm)
	if done {
		p.playing = false
		finished = p.onFinish
		p.onFinish = nil
	}
	dev := p.device
	p.mu.Unlock()

	if done && dev != nil {
		// miniaudio forbids stopping a device from its own callback.
		go p.stopAtEnd(dev, finished)
	}
}

// stopAtEnd stops dev after the last buffer unless a Play restarted it
// in the meantime.
func (p *DevicePlayer) stopAtEnd(dev playbackDevice, finished func()) {
	p.ctlMu.Lock()
	p.mu.Lock()
	restarted := p.playing || p.device != dev
	p.mu.Unlock()
	if !restarted {
		_ = dev.Stop()
	}
	p.ctlMu.Unlock()

	if finished != nil {
		finished()
	}
}

// Pause implements Player.Pause.
func (p *DevicePlayer) Pause(_ context.Context) error {
	p.ctlMu.Lock()
	defer p.ctlMu.Unlock()

	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return nil
	}
	p.playing = false
	p.onFinish = nil
	dev := p.device
	p.mu.Unlock()

	if err := dev.Stop(); err != nil {
		return fmt.Errorf("stop playback device: %w", err)
	}
	return nil
}

// Close releases the playback device.
func (p *DevicePlayer) Close() error {
	p.ctlMu.Lock()
	defer p.ctlMu.Unlock()
	p.release()
	return nil
}

// release uninitializes the device. ctlMu must be held.
func (p *DevicePlayer) release() {
	p.mu.Lock()
	dev := p.device
	p.device, p.playing, p.onFinish = nil, false, nil
	p.path, p.pcm, p.pos = "", nil, 0
	p.mu.Unlock()

	if dev != nil {
		_ = dev.Stop()
		dev.Uninit()
	}
}

// decode reads path as 16-bit interleaved PCM. Non-WAV files go through
// the transcoder into a temporary WAV first.
func (p *DevicePlayer) decode(ctx context.Context, path string) ([]byte, int, int, error) {
	src := path
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		if p.transcoder == nil {
			return nil, 0, 0, fmt.Errorf("%w: cannot play %q without a transcoder", ErrInvalidFormat, filepath.Ext(path))
		}
		tmp, err := os.CreateTemp("", "playback_*.wav")
		if err != nil {
			return nil, 0, 0, fmt.Errorf("create playback file: %w", err)
		}
		src = tmp.Name()
		_ = tmp.Close()
		defer func() { _ = os.Remove(src) }()

		if err := p.transcoder.DecodeToWAV(ctx, path, src, audio.PCMOpts{}); err != nil {
			return nil, 0, 0, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	f, err := os.Open(src) // #nosec G304 - path is an artifact produced by the recorder
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("%w: not a valid WAV file: %s", ErrInvalidFormat, path)
	}
	// 8-bit WAV is unsigned and would need re-centering.
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return nil, 0, 0, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidFormat, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read recording: %w", err)
	}

	// Scale wider samples down to 16 bits.
	if shift := int(dec.BitDepth) - 16; shift > 0 {
		for i, v := range buf.Data {
			buf.Data[i] = v >> shift
		}
	}
	return EncodeS16(buf.Data, make([]byte, 0, len(buf.Data)*2)), int(dec.SampleRate), int(dec.NumChans), nil
}

// Verify interface implementation at compile time.
var _ Player = (*DevicePlayer)(nil)
