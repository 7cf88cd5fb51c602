// Package bootstrap provides dependency initialization for the audio
// heuristics server.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/audioheuristics/internal/audio"
	"github.com/maauso/audioheuristics/internal/capture"
	"github.com/maauso/audioheuristics/internal/config"
	"github.com/maauso/audioheuristics/internal/denoise"
	"github.com/maauso/audioheuristics/internal/noise"
	"github.com/maauso/audioheuristics/internal/server"
	"github.com/maauso/audioheuristics/internal/session"
	"github.com/maauso/audioheuristics/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Controller *session.Controller
	Handlers   *server.Handlers

	audioCtx *capture.Context
	recorder *capture.DeviceRecorder
	player   *capture.DevicePlayer
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	audioCtx, err := capture.NewContext(logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrInitialization, err)
	}

	transcoder := audio.NewFFmpegTranscoder(cfg.FFmpegPath)

	recorder := capture.NewDeviceRecorder(audioCtx, cfg.RecordingsDir,
		capture.WithTranscoder(transcoder),
		capture.WithRecorderLogger(logger),
	)
	player := capture.NewDevicePlayer(audioCtx,
		capture.WithPlayerTranscoder(transcoder),
		capture.WithPlayerLogger(logger),
	)

	// The pre-check runs before capture starts, so it always needs a
	// dedicated meter. One device backs every native measurement; the
	// sampler runs them one at a time and a stop aborts the readiness one.
	native := noise.NewNativeSampler(capture.NewDeviceMeter(audioCtx),
		noise.WithWindow(cfg.SampleWindow),
		noise.WithInterval(cfg.SampleInterval),
		noise.WithLogger(logger),
	)
	sampler := initSampler(cfg, audioCtx, native, recorder, logger)

	denoiser := denoise.NewWAVDenoiser(
		denoise.WithTranscoder(transcoder),
		denoise.WithLogger(logger),
	)

	alerts := server.NewAlertQueue(0)

	ctrl := session.NewController(
		recorder,
		player,
		initPermissions(cfg, audioCtx),
		sampler,
		denoiser,
		store,
		logger,
		session.WithHeuristics(cfg.HeuristicsEnabled),
		session.WithReadinessDelay(cfg.ReadinessDelay),
		session.WithLoudnessThreshold(cfg.LoudnessThresholdDB),
		session.WithRetention(session.Retention(cfg.OriginalRetention)),
		session.WithArchive(cfg.ArchiveRecordings),
		session.WithFormat(capture.Format{
			SampleRate: cfg.RecordSampleRate,
			Channels:   cfg.RecordChannels,
			BitRate:    cfg.RecordBitRate,
			Container:  cfg.RecordContainer,
		}),
		session.WithPrecheckSampler(native),
		session.WithNotifier(fanout{session.NewLogNotifier(logger), alerts}),
	)

	handlers := server.NewHandlers(ctrl, logger,
		server.WithDenoiser(denoiser),
		server.WithAlerts(alerts),
	)

	return &Dependencies{
		Controller: ctrl,
		Handlers:   handlers,
		audioCtx:   audioCtx,
		recorder:   recorder,
		player:     player,
	}, nil
}

// Close releases the audio devices and the audio backend.
// The controller must be closed first.
func (d *Dependencies) Close() error {
	return errors.Join(
		d.recorder.Close(),
		d.player.Close(),
		d.audioCtx.Close(),
	)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.RecordingsDir, s3Cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.RecordingsDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("recordings_dir", localStore.Dir()),
	)
	return localStore, nil
}

// initSampler picks the sampler used for the display measurement taken
// once a recording is confirmed.
func initSampler(cfg *config.Config, audioCtx *capture.Context, native noise.Sampler, recorder noise.MeteringSource, logger *slog.Logger) noise.Sampler {
	switch cfg.MeteringMode {
	case config.MeteringNative:
		return native
	case config.MeteringEngine:
		return noise.NewEngineSampler(recorder)
	}

	// A second capture alongside the recording is not available on every
	// backend; fall back to the recorder's own metering.
	if err := audioCtx.ProbeCapture(); err != nil {
		logger.Info("native metering unavailable, using engine metering",
			slog.String("error", err.Error()),
		)
		return noise.NewEngineSampler(recorder)
	}
	return native
}

func initPermissions(cfg *config.Config, audioCtx *capture.Context) capture.Permissions {
	switch cfg.MicrophonePermission {
	case config.PermissionGranted:
		return capture.StaticPermissions(true)
	case config.PermissionDenied:
		return capture.StaticPermissions(false)
	default:
		return capture.NewDevicePermissions(audioCtx)
	}
}

// fanout delivers each notification to every notifier.
type fanout []session.Notifier

func (f fanout) Notify(n session.Notification) {
	for _, notifier := range f {
		notifier.Notify(n)
	}
}
