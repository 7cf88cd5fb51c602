// Package denoise removes background noise from finished recordings by
// running them through a fixed attenuating equalizer.
package denoise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/maauso/audioheuristics/internal/audio"
)

// CleanedSuffix replaces the source extension in the output path.
const CleanedSuffix = "_cleaned.wav"

// Static errors for denoising.
var (
	// ErrOpenSource is returned when the source recording cannot be read.
	ErrOpenSource = errors.New("denoise: cannot open source")
	// ErrProcess is returned when the effect chain cannot run.
	ErrProcess = errors.New("denoise: cannot process audio")
	// ErrWrite is returned when the cleaned file cannot be written.
	ErrWrite = errors.New("denoise: cannot write output")
)

// Denoiser removes background noise from a recording.
type Denoiser interface {
	// Denoise processes the recording at src and returns the path of the
	// cleaned copy. src is never modified.
	Denoise(ctx context.Context, src string) (string, error)
}

// CleanedPath derives the output path for src: the same path with its
// extension replaced by CleanedSuffix. file:// URIs are accepted.
func CleanedPath(src string) string {
	p := localPath(src)
	return strings.TrimSuffix(p, filepath.Ext(p)) + CleanedSuffix
}

// localPath turns a file:// URI into a filesystem path.
func localPath(src string) string {
	if !strings.HasPrefix(src, "file://") {
		return src
	}
	u, err := url.Parse(src)
	if err != nil || u.Path == "" {
		return strings.TrimPrefix(src, "file://")
	}
	return u.Path
}

// WAVDenoiser implements Denoiser over 16/24/32-bit PCM WAV files.
// Sources in other containers are decoded through a Transcoder first.
type WAVDenoiser struct {
	bands      []Band
	transcoder audio.Transcoder
	logger     *slog.Logger
}

// Option configures a WAVDenoiser.
type Option func(*WAVDenoiser)

// WithBands replaces the equalizer bands.
func WithBands(bands []Band) Option {
	return func(d *WAVDenoiser) {
		d.bands = bands
	}
}

// WithTranscoder enables non-WAV sources.
func WithTranscoder(t audio.Transcoder) Option {
	return func(d *WAVDenoiser) {
		d.transcoder = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *WAVDenoiser) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewWAVDenoiser creates a WAVDenoiser with the fixed noise reduction bands.
func NewWAVDenoiser(opts ...Option) *WAVDenoiser {
	d := &WAVDenoiser{
		bands:  NoiseReductionBands(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Denoise implements Denoiser.Denoise.
func (d *WAVDenoiser) Denoise(ctx context.Context, src string) (string, error) {
	path := localPath(src)
	out := CleanedPath(path)

	input, cleanup, err := d.pcmSource(ctx, path)
	if err != nil {
		return "", err
	}
	defer cleanup()

	buf, bitDepth, err := readPCM(input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOpenSource, err)
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: context cancelled: %w", ErrProcess, err)
	}

	eq := NewEqualizer(d.bands, buf.Format.SampleRate, buf.Format.NumChannels)
	if eq.Active() == 0 {
		return "", fmt.Errorf("%w: no band below nyquist at %d Hz", ErrProcess, buf.Format.SampleRate)
	}
	applyEqualizer(eq, buf, bitDepth)

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: context cancelled: %w", ErrProcess, err)
	}

	if err := writePCM(out, buf, bitDepth); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}

	d.logger.Info("background noise removed",
		slog.String("source", path),
		slog.String("output", out),
		slog.Int("bands", eq.Active()),
		slog.Int("sample_rate", buf.Format.SampleRate),
		slog.Int("channels", buf.Format.NumChannels),
	)
	return out, nil
}

// pcmSource returns a WAV path to read from, decoding non-WAV sources into
// a temporary file next to the source. cleanup removes that file.
func (d *WAVDenoiser) pcmSource(ctx context.Context, path string) (string, func(), error) {
	noop := func() {}
	if _, err := os.Stat(path); err != nil {
		return "", noop, fmt.Errorf("%w: %w", ErrOpenSource, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return path, noop, nil
	}
	if d.transcoder == nil {
		return "", noop, fmt.Errorf("%w: unsupported container %q", ErrOpenSource, filepath.Ext(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "decode_*.wav")
	if err != nil {
		return "", noop, fmt.Errorf("%w: create decode file: %w", ErrProcess, err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := d.transcoder.DecodeToWAV(ctx, path, tmpName, audio.PCMOpts{}); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("%w: decode %s: %w", ErrOpenSource, path, err)
	}
	return tmpName, cleanup, nil
}

// readPCM decodes a whole PCM WAV file.
func readPCM(path string) (*goaudio.IntBuffer, int, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, 0, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file: %s", path)
	}
	if dec.WavAudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported WAV encoding %d", dec.WavAudioFormat)
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read PCM: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("missing format in %s", path)
	}
	return buf, bitDepth, nil
}

// applyEqualizer runs the equalizer over buf in place, clipping to the
// range of bitDepth.
func applyEqualizer(eq *Equalizer, buf *goaudio.IntBuffer, bitDepth int) {
	scale := math.Pow(2, float64(bitDepth-1))
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}

	eq.Process(samples)

	maxVal := scale - 1
	for i, v := range samples {
		s := math.Round(v * scale)
		if s > maxVal {
			s = maxVal
		} else if s < -scale {
			s = -scale
		}
		buf.Data[i] = int(s)
	}
}

// writePCM encodes buf to a temporary file in the output directory and
// renames it over out once complete, so a failed write never leaves a
// partial file at out.
func writePCM(out string, buf *goaudio.IntBuffer, bitDepth int) error {
	tmp, err := os.CreateTemp(filepath.Dir(out), filepath.Base(out)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	enc := wav.NewEncoder(tmp, buf.Format.SampleRate, bitDepth, buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		return fail(fmt.Errorf("encode: %w", err))
	}
	if err := enc.Close(); err != nil {
		return fail(fmt.Errorf("finalize: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(tmpName, out); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}

// Verify interface implementation at compile time.
var _ Denoiser = (*WAVDenoiser)(nil)
