package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/audioheuristics/internal/capture"
	"github.com/maauso/audioheuristics/internal/denoise"
	"github.com/maauso/audioheuristics/internal/noise"
	"github.com/maauso/audioheuristics/internal/storage"
)

// Defaults for the controller.
const (
	// DefaultReadinessDelay is how long after a start the capture status
	// is checked.
	DefaultReadinessDelay = time.Second
	// DefaultLoudnessThresholdDB rejects a start when the pre-check
	// measures strictly above it.
	DefaultLoudnessThresholdDB = noise.LoudFromDB
)

// Retention decides what happens to the original recording once a cleaned
// copy exists.
type Retention string

const (
	// DeleteOriginal removes the pre-denoise file.
	DeleteOriginal Retention = "delete"
	// RetainOriginal keeps the pre-denoise file next to the cleaned copy.
	RetainOriginal Retention = "keep"
)

// Controller owns a single recording session. All methods are safe for
// concurrent use; the session mutex is never held across a collaborator
// call, so Snapshot observes intermediate state while an operation blocks.
type Controller struct {
	recorder    capture.Recorder
	player      capture.Player
	permissions capture.Permissions
	sampler     noise.Sampler
	precheck    noise.Sampler
	denoiser    denoise.Denoiser
	store       storage.Storage
	notifier    Notifier
	logger      *slog.Logger

	format         capture.Format
	thresholdDB    float64
	readinessDelay time.Duration
	retention      Retention
	archive        bool

	// ctx bounds background work and is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	// playMu serializes playback toggles and deletes.
	playMu sync.Mutex

	mu        sync.Mutex
	sess      Session
	pending   bool
	busy      bool
	closed    bool
	recordGen uint64
	playGen   uint64
	readiness *time.Timer
	// measureCancel aborts the readiness check of the current recording.
	measureCancel context.CancelFunc
	readinessWG   sync.WaitGroup
	// discarding is set while an unconfirmed capture is torn down.
	discarding bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithHeuristics sets the initial heuristics mode.
func WithHeuristics(enabled bool) Option {
	return func(c *Controller) {
		c.sess.HeuristicsEnabled = enabled
	}
}

// WithReadinessDelay sets the delay of the post-start status check.
func WithReadinessDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.readinessDelay = d
		}
	}
}

// WithNotifier sets where user notifications are delivered.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithFormat sets the capture format.
func WithFormat(f capture.Format) Option {
	return func(c *Controller) {
		c.format = f
	}
}

// WithLoudnessThreshold sets the pre-check threshold in dB.
func WithLoudnessThreshold(db float64) Option {
	return func(c *Controller) {
		c.thresholdDB = db
	}
}

// WithRetention sets the pre-denoise file policy.
func WithRetention(r Retention) Option {
	return func(c *Controller) {
		c.retention = r
	}
}

// WithArchive enables archiving of finished recordings.
func WithArchive(enabled bool) Option {
	return func(c *Controller) {
		c.archive = enabled
	}
}

// WithPrecheckSampler sets the sampler used by the loudness pre-check.
// It defaults to the display sampler. The pre-check runs before capture
// starts, so it needs a sampler with its own capture.
func WithPrecheckSampler(s noise.Sampler) Option {
	return func(c *Controller) {
		if s != nil {
			c.precheck = s
		}
	}
}

// NewController creates a Controller over the given collaborators.
// If logger is nil, slog.Default() is used.
func NewController(
	recorder capture.Recorder,
	player capture.Player,
	permissions capture.Permissions,
	sampler noise.Sampler,
	denoiser denoise.Denoiser,
	store storage.Storage,
	logger *slog.Logger,
	opts ...Option,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		recorder:       recorder,
		player:         player,
		permissions:    permissions,
		sampler:        sampler,
		precheck:       sampler,
		denoiser:       denoiser,
		store:          store,
		logger:         logger,
		format:         capture.HighQuality(),
		thresholdDB:    DefaultLoudnessThresholdDB,
		readinessDelay: DefaultReadinessDelay,
		retention:      DeleteOriginal,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = NewLogNotifier(logger)
	}
	return c
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Session {
	s := c.sess
	if s.Measurement != nil {
		m := *s.Measurement
		s.Measurement = &m
	}
	s.State = deriveState(s, c.pending)
	return s
}

// Heuristics reports whether heuristics mode is enabled.
func (c *Controller) Heuristics() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.HeuristicsEnabled
}

// SetHeuristics enables or disables heuristics mode. It takes effect at
// the next start or stop.
func (c *Controller) SetHeuristics(enabled bool) {
	c.mu.Lock()
	c.sess.HeuristicsEnabled = enabled
	c.mu.Unlock()

	c.logger.Info("heuristics mode changed", slog.Bool("enabled", enabled))
}

// Init requests microphone permission and prepares the recorder.
func (c *Controller) Init(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.requestPermission(ctx); err != nil {
		return err
	}

	if err := c.recorder.Prepare(ctx, c.format); err != nil {
		c.setError(MsgInitialization)
		c.logger.Error("audio initialization failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	c.logger.Info("audio system initialized",
		slog.Int("sample_rate", c.format.SampleRate),
		slog.Int("channels", c.format.Channels),
		slog.String("container", c.format.Container),
	)
	return nil
}

// requestPermission asks for microphone access and records the result.
func (c *Controller) requestPermission(ctx context.Context) error {
	c.mu.Lock()
	c.pending = true
	c.mu.Unlock()

	granted, err := c.permissions.Request(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	c.sess.HasPermission = err == nil && granted
	if !c.sess.HasPermission {
		c.sess.Error = MsgPermissionDenied
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return ErrPermissionDenied
	}
	if c.sess.Error == MsgPermissionDenied {
		c.sess.Error = ""
	}
	return nil
}

// Start begins a new recording. A held recording is released first: its
// playback is paused and the reference cleared, the file itself is kept.
// With heuristics enabled the start is rejected with ErrTooNoisy when the
// ambient level is above the loudness threshold.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy || c.discarding {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.sess.IsRecording {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrStart, capture.ErrAlreadyRecording)
	}
	c.busy = true
	hasPermission := c.sess.HasPermission
	heuristics := c.sess.HeuristicsEnabled
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	if !hasPermission {
		if err := c.requestPermission(ctx); err != nil {
			return err
		}
	}

	if heuristics {
		if err := c.checkLoudness(ctx); err != nil {
			return err
		}
	}

	c.releaseArtifact(ctx)

	if st, err := c.recorder.Status(ctx); err != nil || !st.CanRecord {
		if err := c.recorder.Prepare(ctx, c.format); err != nil {
			return c.failStart(fmt.Errorf("%w: prepare: %w", ErrStart, err))
		}
	}

	if err := c.recorder.Start(ctx); err != nil {
		return c.failStart(fmt.Errorf("%w: %w", ErrStart, err))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.discardRecording(ctx)
		return ErrClosed
	}
	c.sess.IsRecording = true
	c.sess.Error = ""
	c.sess.NoiseLevel = ""
	c.sess.Measurement = nil
	c.recordGen++
	gen := c.recordGen
	rctx, rcancel := context.WithCancel(c.ctx)
	c.measureCancel = rcancel
	c.readinessWG.Add(1)
	c.readiness = time.AfterFunc(c.readinessDelay, func() {
		defer c.readinessWG.Done()
		c.checkReadiness(rctx, gen)
	})
	c.mu.Unlock()

	c.logger.Info("recording started", slog.Bool("heuristics", heuristics))
	return nil
}

// releaseArtifact clears a held recording before a new one starts.
func (c *Controller) releaseArtifact(ctx context.Context) {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	c.mu.Lock()
	path, playing := c.sess.AudioURI, c.sess.IsPlaying
	c.mu.Unlock()
	if path == "" {
		return
	}

	if playing {
		if err := c.player.Pause(ctx); err != nil {
			c.logger.Warn("failed to pause playback", slog.String("error", err.Error()))
		}
	}

	c.mu.Lock()
	c.sess.AudioURI = ""
	c.sess.IsPlaying = false
	c.sess.ArchiveURL = ""
	c.playGen++
	c.mu.Unlock()

	c.logger.Debug("recording released", slog.String("path", path))
}

// checkLoudness runs the pre-check measurement.
func (c *Controller) checkLoudness(ctx context.Context) error {
	m, err := c.precheck.Measure(ctx)
	if err != nil {
		return c.failStart(fmt.Errorf("%w: %w", ErrMeasurement, err))
	}

	if m.DB > c.thresholdDB {
		c.mu.Lock()
		c.sess.Error = ""
		c.mu.Unlock()

		c.logger.Warn("recording rejected by loudness pre-check",
			slog.Float64("db", m.DB),
			slog.Float64("threshold_db", c.thresholdDB),
		)
		c.notify(SeverityWarning, MsgTooNoisy)
		return fmt.Errorf("%w: %.1f dB", ErrTooNoisy, m.DB)
	}
	return nil
}

// failStart records a start failure and notifies the user.
func (c *Controller) failStart(err error) error {
	c.mu.Lock()
	c.sess.IsRecording = false
	c.sess.Error = MsgStart
	c.mu.Unlock()

	c.logger.Error("failed to start recording", slog.String("error", err.Error()))
	c.notify(SeverityError, MsgStart)
	return err
}

// checkReadiness runs once, readinessDelay after a start. gen identifies
// the recording it was scheduled for; a stopped or replaced recording
// makes it a no-op. ctx is cancelled when the recording stops.
func (c *Controller) checkReadiness(ctx context.Context, gen uint64) {
	if !c.isCurrent(gen) {
		return
	}

	st, err := c.recorder.Status(ctx)

	c.mu.Lock()
	if c.recordGen != gen || !c.sess.IsRecording {
		c.mu.Unlock()
		return
	}
	c.readiness = nil
	if err != nil || !st.IsRecording {
		c.sess.IsRecording = false
		c.sess.Error = MsgNotConfirmed
		c.recordGen++
		if c.measureCancel != nil {
			c.measureCancel()
			c.measureCancel = nil
		}
		c.discarding = true
		c.mu.Unlock()

		attrs := []any{slog.Bool("is_recording", st.IsRecording)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		c.logger.Warn("recorder not ready", attrs...)

		c.discardRecording(ctx)
		c.mu.Lock()
		c.discarding = false
		c.mu.Unlock()

		c.notify(SeverityError, MsgNotConfirmed)
		return
	}
	c.mu.Unlock()

	m, err := c.sampler.Measure(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recordGen != gen || !c.sess.IsRecording {
		return
	}
	if err != nil {
		c.sess.Error = MsgMeasurement
		c.logger.Warn("noise measurement failed", slog.String("error", err.Error()))
		return
	}
	c.sess.NoiseLevel = m.String()
	c.sess.Measurement = &m
}

// discardRecording stops an unconfirmed capture and removes whatever it
// wrote. The engine may already have stopped on its own.
func (c *Controller) discardRecording(ctx context.Context) {
	path, err := c.recorder.Stop(context.WithoutCancel(ctx))
	if err != nil {
		if !errors.Is(err, capture.ErrNotRecording) {
			c.logger.Warn("failed to stop unconfirmed recording", slog.String("error", err.Error()))
		}
		return
	}
	if path == "" {
		return
	}
	if err := c.store.Delete(context.WithoutCancel(ctx), path); err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.logger.Warn("failed to remove unconfirmed recording",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.recordGen == gen && c.sess.IsRecording
}

// Stop ends the active recording and holds the produced file. With
// heuristics enabled the file is denoised and the cleaned copy held
// instead. The session leaves the recording state even when stopping fails.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.busy || c.discarding {
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.sess.IsRecording {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrStop, capture.ErrNotRecording)
	}
	c.busy = true
	c.sess.IsRecording = false
	c.sess.NoiseLevel = ""
	c.sess.Measurement = nil
	c.stopReadinessLocked()
	heuristics := c.sess.HeuristicsEnabled
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	// The readiness measurement may hold the ambient meter.
	c.readinessWG.Wait()

	path, err := c.recorder.Stop(ctx)
	if err != nil {
		c.setError(MsgStop)
		c.logger.Error("failed to stop recording", slog.String("error", err.Error()))
		c.notify(SeverityError, MsgStop)
		return fmt.Errorf("%w: %w", ErrStop, err)
	}

	artifact := path
	var denoiseErr error
	if heuristics && path != "" {
		cleaned, err := c.denoiser.Denoise(ctx, path)
		if err != nil {
			denoiseErr = fmt.Errorf("%w: %w", ErrDenoise, err)
			c.logger.Error("failed to remove background noise",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		} else {
			artifact = cleaned
			c.applyRetention(ctx, path)
		}
	}

	c.mu.Lock()
	c.sess.AudioURI = artifact
	c.sess.IsPlaying = false
	c.sess.ArchiveURL = ""
	c.sess.Error = ""
	if denoiseErr != nil {
		c.sess.Error = MsgDenoise
	}
	c.mu.Unlock()

	c.logger.Info("recording stopped",
		slog.String("path", artifact),
		slog.Bool("denoised", artifact != path),
	)

	if denoiseErr != nil {
		c.notify(SeverityError, MsgDenoise)
	}
	if c.archive && artifact != "" {
		c.archiveArtifact(ctx, artifact)
	}
	return denoiseErr
}

// applyRetention handles the original recording after a successful denoise.
func (c *Controller) applyRetention(ctx context.Context, original string) {
	if c.retention == RetainOriginal {
		return
	}
	if err := c.store.Delete(ctx, original); err != nil {
		c.logger.Warn("failed to delete original recording",
			slog.String("path", original),
			slog.String("error", err.Error()),
		)
	}
}

// archiveArtifact copies the held recording to the archive. Failures are
// logged only.
func (c *Controller) archiveArtifact(ctx context.Context, path string) {
	url, err := c.store.Archive(ctx, path)
	if err != nil {
		c.logger.Warn("failed to archive recording",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}

	c.mu.Lock()
	if c.sess.AudioURI == path {
		c.sess.ArchiveURL = url
	}
	c.mu.Unlock()
}

// ToggleRecord stops an active recording or starts a new one.
func (c *Controller) ToggleRecord(ctx context.Context) error {
	c.mu.Lock()
	recording := c.sess.IsRecording
	c.mu.Unlock()

	if recording {
		return c.Stop(ctx)
	}
	return c.Start(ctx)
}

// TogglePlayback pauses the held recording when it is playing and plays
// it otherwise. It is a no-op without a held recording.
func (c *Controller) TogglePlayback(ctx context.Context) error {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	c.mu.Lock()
	path, playing := c.sess.AudioURI, c.sess.IsPlaying
	c.mu.Unlock()
	if path == "" {
		return nil
	}

	if playing {
		if err := c.player.Pause(ctx); err != nil {
			return c.failPlayback(err)
		}
		c.mu.Lock()
		c.sess.IsPlaying = false
		c.playGen++
		c.mu.Unlock()
		return nil
	}

	// Marked before Play so a short file finishing immediately is not
	// overwritten afterwards.
	c.mu.Lock()
	c.sess.IsPlaying = true
	c.playGen++
	gen := c.playGen
	c.mu.Unlock()

	if err := c.player.Play(ctx, path, func() { c.playbackFinished(gen) }); err != nil {
		c.mu.Lock()
		if c.playGen == gen {
			c.sess.IsPlaying = false
		}
		c.mu.Unlock()
		return c.failPlayback(err)
	}
	return nil
}

func (c *Controller) playbackFinished(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playGen == gen {
		c.sess.IsPlaying = false
	}
}

func (c *Controller) failPlayback(err error) error {
	c.setError(MsgPlayback)
	c.logger.Error("failed to play recording", slog.String("error", err.Error()))
	c.notify(SeverityError, MsgPlayback)
	return fmt.Errorf("%w: %w", ErrPlayback, err)
}

// Delete removes the held recording. The reference is cleared even when
// the file cannot be removed. It is a no-op without a held recording.
func (c *Controller) Delete(ctx context.Context) error {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	c.mu.Lock()
	path, playing := c.sess.AudioURI, c.sess.IsPlaying
	c.mu.Unlock()
	if path == "" {
		return nil
	}

	if playing {
		if err := c.player.Pause(ctx); err != nil {
			c.logger.Warn("failed to pause playback", slog.String("error", err.Error()))
		}
	}

	err := c.store.Delete(ctx, path)

	c.mu.Lock()
	c.sess.AudioURI = ""
	c.sess.IsPlaying = false
	c.sess.ArchiveURL = ""
	c.playGen++
	if err == nil {
		c.sess.Error = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("failed to delete recording",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		c.notify(SeverityError, MsgDelete)
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	c.logger.Info("recording deleted", slog.String("path", path))
	return nil
}

// MeasureNoise runs the configured sampler and stores the result for
// display. Microphone permission is required.
func (c *Controller) MeasureNoise(ctx context.Context) (noise.Measurement, error) {
	c.mu.Lock()
	if !c.sess.HasPermission {
		c.sess.Error = MsgPermissionDenied
		c.mu.Unlock()
		return noise.Measurement{}, ErrPermissionDenied
	}
	c.mu.Unlock()

	m, err := c.sampler.Measure(ctx)
	if err != nil {
		c.setError(MsgMeasurement)
		c.logger.Warn("noise measurement failed", slog.String("error", err.Error()))
		return noise.Measurement{}, fmt.Errorf("%w: %w", ErrMeasurement, err)
	}

	c.mu.Lock()
	c.sess.NoiseLevel = m.String()
	c.sess.Measurement = &m
	c.mu.Unlock()

	c.logger.Info("ambient noise measured",
		slog.Float64("db", m.DB),
		slog.String("level", string(m.Level)),
	)
	return m, nil
}

// Close tears the session down: a pending readiness check is cancelled,
// playback is paused and an active recording stopped. Failures are logged
// and never returned.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopReadinessLocked()
	recording, playing := c.sess.IsRecording, c.sess.IsPlaying
	c.mu.Unlock()

	c.cancel()
	c.readinessWG.Wait()

	if playing {
		if err := c.player.Pause(ctx); err != nil {
			c.logger.Warn("failed to pause playback on close", slog.String("error", err.Error()))
		}
	}
	if recording {
		if _, err := c.recorder.Stop(ctx); err != nil {
			c.logger.Warn("failed to stop recording on close", slog.String("error", err.Error()))
		}
	}

	c.mu.Lock()
	c.sess.IsRecording = false
	c.sess.IsPlaying = false
	c.mu.Unlock()

	c.logger.Info("session closed")
	return nil
}

// stopReadinessLocked invalidates the pending readiness check and aborts
// one that is already measuring.
func (c *Controller) stopReadinessLocked() {
	c.recordGen++
	if c.readiness != nil {
		if c.readiness.Stop() {
			c.readinessWG.Done()
		}
		c.readiness = nil
	}
	if c.measureCancel != nil {
		c.measureCancel()
		c.measureCancel = nil
	}
}

func (c *Controller) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.sess.Error = msg
	c.mu.Unlock()
}

func (c *Controller) notify(severity Severity, msg string) {
	title := "Error"
	if severity == SeverityWarning {
		title = "Warning"
	}
	c.notifier.Notify(Notification{
		Severity: severity,
		Title:    title,
		Message:  msg,
		Time:     time.Now(),
	})
}
