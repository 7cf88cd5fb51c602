package capture

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice counts start and stop calls.
type fakeDevice struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (d *fakeDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDevice) Uninit() {}

func (d *fakeDevice) counts() (starts, stops int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.stops
}

// loadedPlayer returns a player holding four bytes of PCM for path.
func loadedPlayer(path string) (*DevicePlayer, *fakeDevice) {
	dev := &fakeDevice{}
	p := NewDevicePlayer(nil)
	p.path, p.pcm, p.device = path, []byte{1, 2, 3, 4}, dev
	return p, dev
}

func TestDevicePlayer_StopsAtEnd(t *testing.T) {
	p, dev := loadedPlayer("/rec/take.wav")
	finished := make(chan struct{})
	require.NoError(t, p.Play(context.Background(), "/rec/take.wav", func() { close(finished) }))

	out := make([]byte, 8)
	p.fill(out)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, out)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("onFinish was not called")
	}
	starts, stops := dev.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestDevicePlayer_RestartBeforeEndStop(t *testing.T) {
	p, dev := loadedPlayer("/rec/take.wav")
	finished := make(chan struct{})
	require.NoError(t, p.Play(context.Background(), "/rec/take.wav", func() { close(finished) }))

	// Hold the device lock so the end-of-file stop runs after the replay.
	p.ctlMu.Lock()
	p.fill(make([]byte, 8))
	require.NoError(t, p.resumeLocked(nil))
	p.ctlMu.Unlock()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("onFinish was not called")
	}
	starts, stops := dev.counts()
	assert.Equal(t, 2, starts)
	assert.Zero(t, stops, "a replayed device must keep running")

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.True(t, p.playing)
	assert.Zero(t, p.pos)
}

func TestDevicePlayer_PlaySamePathIsNoop(t *testing.T) {
	p, dev := loadedPlayer("/rec/take.wav")
	ctx := context.Background()
	require.NoError(t, p.Play(ctx, "/rec/take.wav", nil))
	require.NoError(t, p.Play(ctx, "/rec/take.wav", nil))

	starts, _ := dev.counts()
	assert.Equal(t, 1, starts)

	require.NoError(t, p.Pause(ctx))
	_, stops := dev.counts()
	assert.Equal(t, 1, stops)
}

func TestDevicePlayer_EmptyPath(t *testing.T) {
	p := NewDevicePlayer(nil)
	assert.ErrorIs(t, p.Play(context.Background(), "", nil), ErrNothingToPlay)
}

func writeWAV(t *testing.T, bitDepth int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, 8000, bitDepth, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           data,
		SourceBitDepth: bitDepth,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestDevicePlayer_Decode(t *testing.T) {
	t.Run("16-bit samples pass through", func(t *testing.T) {
		path := writeWAV(t, 16, []int{1000, -1000})
		p := NewDevicePlayer(nil)

		pcm, rate, channels, err := p.decode(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, 8000, rate)
		assert.Equal(t, 1, channels)
		assert.Equal(t, []int{1000, -1000}, DecodeS16(pcm, nil))
	})

	t.Run("24-bit samples are scaled down", func(t *testing.T) {
		path := writeWAV(t, 24, []int{1000 << 8, -1000 << 8})
		p := NewDevicePlayer(nil)

		pcm, _, _, err := p.decode(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, []int{1000, -1000}, DecodeS16(pcm, nil))
	})

	t.Run("8-bit is rejected", func(t *testing.T) {
		path := writeWAV(t, 8, []int{128, 200, 50})
		p := NewDevicePlayer(nil)

		_, _, _, err := p.decode(context.Background(), path)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("non-wav needs a transcoder", func(t *testing.T) {
		p := NewDevicePlayer(nil)

		_, _, _, err := p.decode(context.Background(), "/rec/take.m4a")
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})
}
