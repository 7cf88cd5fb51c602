package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// DeviceMeter is a dedicated capture that keeps only the level of the
// latest input buffer. Nothing is written to disk.
type DeviceMeter struct {
	mctx *Context

	mu       sync.Mutex
	device   *malgo.Device
	level    float64
	hasLevel bool
}

// NewDeviceMeter creates a DeviceMeter over mctx.
func NewDeviceMeter(mctx *Context) *DeviceMeter {
	return &DeviceMeter{mctx: mctx}
}

// Start opens the default capture device at f.
func (m *DeviceMeter) Start(_ context.Context, f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return ErrAlreadyRecording
	}

	dev, err := m.mctx.openCapture(f, m.onInput)
	if err != nil {
		return err
	}
	m.hasLevel = false
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start meter device: %w", err)
	}
	m.device = dev
	return nil
}

func (m *DeviceMeter) onInput(pcm []byte) {
	db, ok := AveragePowerS16(pcm)
	if !ok {
		return
	}
	m.mu.Lock()
	m.level, m.hasLevel = db, true
	m.mu.Unlock()
}

// Level returns the latest average power in dBFS.
func (m *DeviceMeter) Level() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level, m.hasLevel
}

// Stop closes the capture device.
func (m *DeviceMeter) Stop() error {
	m.mu.Lock()
	dev := m.device
	m.device = nil
	m.mu.Unlock()

	if dev == nil {
		return nil
	}
	err := dev.Stop()
	dev.Uninit()
	if err != nil {
		return fmt.Errorf("stop meter device: %w", err)
	}
	return nil
}
