package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
)

// Context owns the miniaudio backend shared by every device adapter.
type Context struct {
	ctx    *malgo.AllocatedContext
	logger *slog.Logger
}

// NewContext initializes the default miniaudio backend.
func NewContext(logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", slog.String("message", message))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Context{ctx: ctx, logger: logger}, nil
}

// Close releases the backend. Devices must be closed first.
func (c *Context) Close() error {
	if c.ctx == nil {
		return nil
	}
	err := c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
	return err
}

// ProbeCapture opens and immediately closes the default capture device.
// It fails when no microphone is present or access is refused.
func (c *Context) ProbeCapture() error {
	dev, err := c.openCapture(AmbientFormat(), func([]byte) {})
	if err != nil {
		return err
	}
	dev.Uninit()
	return nil
}

// openCapture initializes a signed 16-bit capture device. onInput
// receives each buffer of interleaved samples on the audio thread.
func (c *Context) openCapture(f Format, onInput func(pcm []byte)) (*malgo.Device, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(f.Channels)
	cfg.SampleRate = uint32(f.SampleRate)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(c.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onInput(input)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	return dev, nil
}

// openPlayback initializes a signed 16-bit playback device. fill must
// write len(out) bytes of interleaved samples on the audio thread.
func (c *Context) openPlayback(sampleRate, channels int, fill func(out []byte)) (*malgo.Device, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(c.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) {
			fill(output)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	return dev, nil
}

// DevicePermissions grants microphone access when the default capture
// device can be opened.
type DevicePermissions struct {
	ctx *Context
}

// NewDevicePermissions creates a DevicePermissions over ctx.
func NewDevicePermissions(ctx *Context) *DevicePermissions {
	return &DevicePermissions{ctx: ctx}
}

// Request implements Permissions.
func (p *DevicePermissions) Request(_ context.Context) (bool, error) {
	if err := p.ctx.ProbeCapture(); err != nil {
		p.ctx.logger.Warn("microphone unavailable",
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	return true, nil
}

// Verify interface implementation at compile time.
var _ Permissions = (*DevicePermissions)(nil)

// Verify interface implementation at compile time.
var _ playbackDevice = (*malgo.Device)(nil)
