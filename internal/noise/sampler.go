package noise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/audioheuristics/internal/capture"
)

// Default sampling parameters: 10 readings per second over 3 seconds.
const (
	DefaultWindow   = 3 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// ErrNoMetering is returned when the engine exposes no metering value.
var ErrNoMetering = errors.New("noise: engine metering unavailable")

// Sampler measures ambient noise.
type Sampler interface {
	// Measure samples the environment and returns the classified average.
	Measure(ctx context.Context) (Measurement, error)
}

// Meter is a dedicated capture that exposes an instantaneous level.
type Meter interface {
	// Start opens capture at the given format.
	Start(ctx context.Context, f capture.Format) error
	// Level returns the latest average power in dBFS. ok is false when no
	// audio has arrived yet.
	Level() (db float64, ok bool)
	// Stop closes capture.
	Stop() error
}

// MeteringSource exposes the status of an active recording.
type MeteringSource interface {
	Status(ctx context.Context) (capture.Status, error)
}

// NativeSampler measures noise with a dedicated low-duration capture,
// polling the meter at a fixed cadence over a fixed window. The meter
// holds the device exclusively, so concurrent Measure calls run one at a
// time.
type NativeSampler struct {
	slot     chan struct{}
	meter    Meter
	format   capture.Format
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NativeOption configures a NativeSampler.
type NativeOption func(*NativeSampler)

// WithWindow sets the sampling window.
func WithWindow(d time.Duration) NativeOption {
	return func(s *NativeSampler) {
		s.window = d
	}
}

// WithInterval sets the polling cadence.
func WithInterval(d time.Duration) NativeOption {
	return func(s *NativeSampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) NativeOption {
	return func(s *NativeSampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewNativeSampler creates a NativeSampler over meter.
func NewNativeSampler(meter Meter, opts ...NativeOption) *NativeSampler {
	s := &NativeSampler{
		slot:     make(chan struct{}, 1),
		meter:    meter,
		format:   capture.AmbientFormat(),
		window:   DefaultWindow,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ticks returns how many readings one window schedules.
func (s *NativeSampler) Ticks() int {
	if s.window <= 0 {
		return 0
	}
	return int(s.window / s.interval)
}

// Measure implements Sampler. It schedules one reading per interval tick
// for the whole window, then averages whatever readings arrived.
func (s *NativeSampler) Measure(ctx context.Context) (Measurement, error) {
	select {
	case s.slot <- struct{}{}:
	default:
		select {
		case s.slot <- struct{}{}:
		case <-ctx.Done():
			return Measurement{}, fmt.Errorf("context cancelled: %w", ctx.Err())
		}
	}
	defer func() { <-s.slot }()

	if err := s.meter.Start(ctx, s.format); err != nil {
		return Measurement{}, fmt.Errorf("start meter: %w", err)
	}

	samples, err := s.collect(ctx)

	if stopErr := s.meter.Stop(); stopErr != nil {
		s.logger.Warn("failed to stop ambient meter",
			slog.String("error", stopErr.Error()),
		)
	}
	if err != nil {
		return Measurement{}, err
	}

	m, err := Summarize(samples)
	if err != nil {
		return Measurement{}, err
	}

	s.logger.Debug("ambient noise measured",
		slog.Int("samples", len(samples)),
		slog.Float64("db", m.DB),
		slog.String("level", string(m.Level)),
	)
	return m, nil
}

func (s *NativeSampler) collect(ctx context.Context) ([]float64, error) {
	ticks := s.Ticks()
	samples := make([]float64, 0, ticks)
	if ticks == 0 {
		return samples, nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-ticker.C:
			if db, ok := s.meter.Level(); ok {
				samples = append(samples, db)
			}
		}
	}
	return samples, nil
}

// EngineSampler reads the metering value reported by the active recording.
type EngineSampler struct {
	source MeteringSource
}

// NewEngineSampler creates an EngineSampler over source.
func NewEngineSampler(source MeteringSource) *EngineSampler {
	return &EngineSampler{source: source}
}

// Measure implements Sampler. It returns ErrNoMetering when the engine
// reports no level.
func (s *EngineSampler) Measure(ctx context.Context) (Measurement, error) {
	status, err := s.source.Status(ctx)
	if err != nil {
		return Measurement{}, fmt.Errorf("read engine status: %w", err)
	}
	if status.Metering == nil {
		return Measurement{}, ErrNoMetering
	}
	db := *status.Metering
	return Measurement{DB: db, Level: Classify(db)}, nil
}

// Verify interface implementation at compile time.
var (
	_ Sampler = (*NativeSampler)(nil)
	_ Sampler = (*EngineSampler)(nil)
)
