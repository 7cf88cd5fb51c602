// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalid is returned when a variable holds an unsupported value.
	ErrInvalid = errors.New("config: invalid value")
	// ErrArchiveRequiresS3 is returned when ARCHIVE_RECORDINGS is set
	// without S3_BUCKET and S3_REGION.
	ErrArchiveRequiresS3 = errors.New("config: ARCHIVE_RECORDINGS requires S3_BUCKET and S3_REGION")
)

// Supported values for the mode settings.
const (
	PermissionAuto    = "auto"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"

	MeteringAuto   = "auto"
	MeteringNative = "native"
	MeteringEngine = "engine"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`

	// Storage settings
	RecordingsDir string `env:"RECORDINGS_DIR, default=/tmp/audioheuristics" json:"recordings_dir" validate:"required"`
	FFmpegPath    string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`

	// Heuristics settings
	HeuristicsEnabled   bool          `env:"HEURISTICS_ENABLED, default=false" json:"heuristics_enabled"`
	LoudnessThresholdDB float64       `env:"LOUDNESS_THRESHOLD_DB, default=-30" json:"loudness_threshold_db" validate:"max=0"`
	ReadinessDelay      time.Duration `env:"READINESS_DELAY, default=1s" json:"readiness_delay" validate:"gt=0"`
	SampleWindow        time.Duration `env:"SAMPLE_WINDOW, default=3s" json:"sample_window" validate:"gt=0"`
	SampleInterval      time.Duration `env:"SAMPLE_INTERVAL, default=100ms" json:"sample_interval" validate:"gt=0,ltefield=SampleWindow"`
	MeteringMode        string        `env:"METERING_MODE, default=auto" json:"metering_mode" validate:"oneof=auto native engine"`
	OriginalRetention   string        `env:"ORIGINAL_RETENTION, default=delete" json:"original_retention" validate:"oneof=delete keep"`

	// Capture settings
	RecordSampleRate     int    `env:"RECORD_SAMPLE_RATE, default=44100" json:"record_sample_rate" validate:"min=8000,max=192000"`
	RecordChannels       int    `env:"RECORD_CHANNELS, default=2" json:"record_channels" validate:"oneof=1 2"`
	RecordBitRate        int    `env:"RECORD_BIT_RATE, default=128000" json:"record_bit_rate" validate:"min=8000"`
	RecordContainer      string `env:"RECORD_CONTAINER, default=wav" json:"record_container" validate:"oneof=wav m4a"`
	MicrophonePermission string `env:"MICROPHONE_PERMISSION, default=auto" json:"microphone_permission" validate:"oneof=auto granted denied"`

	// Optional S3 settings
	ArchiveRecordings  bool   `env:"ARCHIVE_RECORDINGS, default=false" json:"archive_recordings"`
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty" validate:"required_if=ArchiveRecordings true"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty" validate:"required_if=ArchiveRecordings true"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=json text"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`                              // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting against its allowed values.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required_if" {
				return ErrArchiveRequiresS3
			}
		}
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", ErrInvalid, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, RecordingsDir: %s, HeuristicsEnabled: %t, LoudnessThresholdDB: %.1f, MeteringMode: %s, MicrophonePermission: %s, RecordContainer: %s, OriginalRetention: %s, ArchiveRecordings: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.RecordingsDir,
		c.HeuristicsEnabled,
		c.LoudnessThresholdDB,
		c.MeteringMode,
		c.MicrophonePermission,
		c.RecordContainer,
		c.OriginalRetention,
		c.ArchiveRecordings,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
