package noise

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audioheuristics/internal/capture"
)

// fakeMeter replays a fixed sequence of levels.
type fakeMeter struct {
	mu       sync.Mutex
	levels   []float64
	next     int
	startErr error
	active   bool
	started  bool
	stopped  bool
	format   capture.Format
}

func (m *fakeMeter) Start(_ context.Context, f capture.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	if m.active {
		return capture.ErrAlreadyRecording
	}
	m.active = true
	m.started = true
	m.format = f
	return nil
}

func (m *fakeMeter) Level() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.levels) {
		return 0, false
	}
	db := m.levels[m.next]
	m.next++
	return db, true
}

func (m *fakeMeter) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.stopped = true
	return nil
}

type fakeSource struct {
	status capture.Status
	err    error
}

func (s fakeSource) Status(_ context.Context) (capture.Status, error) {
	return s.status, s.err
}

func TestNativeSampler_Ticks(t *testing.T) {
	s := NewNativeSampler(&fakeMeter{})
	assert.Equal(t, 30, s.Ticks())

	s = NewNativeSampler(&fakeMeter{}, WithWindow(0))
	assert.Equal(t, 0, s.Ticks())
}

func TestNativeSampler_Measure(t *testing.T) {
	t.Run("averages readings over the window", func(t *testing.T) {
		meter := &fakeMeter{levels: []float64{-60, -55, -58}}
		s := NewNativeSampler(meter,
			WithWindow(3*time.Millisecond),
			WithInterval(time.Millisecond),
		)

		m, err := s.Measure(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Quiet, m.Level)
		assert.InDelta(t, -57.67, m.DB, 0.01)
		assert.True(t, meter.started)
		assert.True(t, meter.stopped)
		assert.Equal(t, capture.AmbientFormat(), meter.format)
	})

	t.Run("readings beyond the window are not taken", func(t *testing.T) {
		meter := &fakeMeter{levels: []float64{-20, -20, -90, -90}}
		s := NewNativeSampler(meter,
			WithWindow(2*time.Millisecond),
			WithInterval(time.Millisecond),
		)

		m, err := s.Measure(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Loud, m.Level)
	})

	t.Run("zero-length window reports ErrNoSamples", func(t *testing.T) {
		meter := &fakeMeter{levels: []float64{-40}}
		s := NewNativeSampler(meter, WithWindow(0))

		_, err := s.Measure(context.Background())
		require.ErrorIs(t, err, ErrNoSamples)
		assert.True(t, meter.stopped)
	})

	t.Run("silent meter reports ErrNoSamples", func(t *testing.T) {
		meter := &fakeMeter{}
		s := NewNativeSampler(meter,
			WithWindow(3*time.Millisecond),
			WithInterval(time.Millisecond),
		)

		_, err := s.Measure(context.Background())
		assert.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("meter start failure", func(t *testing.T) {
		startErr := errors.New("device busy")
		s := NewNativeSampler(&fakeMeter{startErr: startErr})

		_, err := s.Measure(context.Background())
		assert.ErrorIs(t, err, startErr)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		meter := &fakeMeter{levels: []float64{-40}}
		s := NewNativeSampler(meter)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Measure(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.True(t, meter.stopped)
	})
}

func TestNativeSampler_ConcurrentMeasure(t *testing.T) {
	meter := &fakeMeter{levels: []float64{-60, -60, -60, -60, -60, -60}}
	s := NewNativeSampler(meter,
		WithWindow(3*time.Millisecond),
		WithInterval(time.Millisecond),
	)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Measure(context.Background())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestNativeSampler_WaitRespectsContext(t *testing.T) {
	meter := &fakeMeter{levels: []float64{-60}}
	s := NewNativeSampler(meter, WithWindow(time.Second), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Measure(ctx)
	}()

	// Wait until the first measurement holds the meter.
	require.Eventually(t, func() bool {
		meter.mu.Lock()
		defer meter.mu.Unlock()
		return meter.active
	}, time.Second, time.Millisecond)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	_, err := s.Measure(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	cancel()
	<-done
}

func TestEngineSampler_Measure(t *testing.T) {
	t.Run("classifies reported metering", func(t *testing.T) {
		level := -35.5
		s := NewEngineSampler(fakeSource{status: capture.Status{IsRecording: true, Metering: &level}})

		m, err := s.Measure(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Moderate, m.Level)
		assert.Equal(t, -35.5, m.DB)
	})

	t.Run("missing metering", func(t *testing.T) {
		s := NewEngineSampler(fakeSource{status: capture.Status{IsRecording: true}})

		_, err := s.Measure(context.Background())
		assert.ErrorIs(t, err, ErrNoMetering)
	})

	t.Run("status failure", func(t *testing.T) {
		statusErr := errors.New("engine gone")
		s := NewEngineSampler(fakeSource{err: statusErr})

		_, err := s.Measure(context.Background())
		assert.ErrorIs(t, err, statusErr)
	})
}
