package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"PORT", "RECORDINGS_DIR", "FFMPEG_PATH",
	"HEURISTICS_ENABLED", "LOUDNESS_THRESHOLD_DB", "READINESS_DELAY",
	"SAMPLE_WINDOW", "SAMPLE_INTERVAL", "METERING_MODE", "ORIGINAL_RETENTION",
	"RECORD_SAMPLE_RATE", "RECORD_CHANNELS", "RECORD_BIT_RATE", "RECORD_CONTAINER",
	"MICROPHONE_PERMISSION", "ARCHIVE_RECORDINGS",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/audioheuristics", cfg.RecordingsDir)
	assert.Empty(t, cfg.FFmpegPath)
	assert.False(t, cfg.HeuristicsEnabled)
	assert.InDelta(t, -30, cfg.LoudnessThresholdDB, 1e-9)
	assert.Equal(t, time.Second, cfg.ReadinessDelay)
	assert.Equal(t, 3*time.Second, cfg.SampleWindow)
	assert.Equal(t, 100*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, MeteringAuto, cfg.MeteringMode)
	assert.Equal(t, "delete", cfg.OriginalRetention)
	assert.Equal(t, 44100, cfg.RecordSampleRate)
	assert.Equal(t, 2, cfg.RecordChannels)
	assert.Equal(t, 128000, cfg.RecordBitRate)
	assert.Equal(t, "wav", cfg.RecordContainer)
	assert.Equal(t, PermissionAuto, cfg.MicrophonePermission)
	assert.False(t, cfg.ArchiveRecordings)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("RECORDINGS_DIR", "/custom/recordings")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg")
	t.Setenv("HEURISTICS_ENABLED", "true")
	t.Setenv("LOUDNESS_THRESHOLD_DB", "-35.5")
	t.Setenv("READINESS_DELAY", "500ms")
	t.Setenv("SAMPLE_WINDOW", "2s")
	t.Setenv("SAMPLE_INTERVAL", "50ms")
	t.Setenv("METERING_MODE", "engine")
	t.Setenv("ORIGINAL_RETENTION", "keep")
	t.Setenv("RECORD_SAMPLE_RATE", "48000")
	t.Setenv("RECORD_CHANNELS", "1")
	t.Setenv("RECORD_BIT_RATE", "96000")
	t.Setenv("RECORD_CONTAINER", "m4a")
	t.Setenv("MICROPHONE_PERMISSION", "granted")
	t.Setenv("ARCHIVE_RECORDINGS", "true")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/recordings", cfg.RecordingsDir)
	assert.Equal(t, "/opt/ffmpeg", cfg.FFmpegPath)
	assert.True(t, cfg.HeuristicsEnabled)
	assert.InDelta(t, -35.5, cfg.LoudnessThresholdDB, 1e-9)
	assert.Equal(t, 500*time.Millisecond, cfg.ReadinessDelay)
	assert.Equal(t, 2*time.Second, cfg.SampleWindow)
	assert.Equal(t, 50*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, MeteringEngine, cfg.MeteringMode)
	assert.Equal(t, "keep", cfg.OriginalRetention)
	assert.Equal(t, 48000, cfg.RecordSampleRate)
	assert.Equal(t, 1, cfg.RecordChannels)
	assert.Equal(t, 96000, cfg.RecordBitRate)
	assert.Equal(t, "m4a", cfg.RecordContainer)
	assert.Equal(t, PermissionGranted, cfg.MicrophonePermission)
	assert.True(t, cfg.ArchiveRecordings)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:4566", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidIntegerDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	// go-envconfig returns an error when parsing fails
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown metering mode", "METERING_MODE", "magic"},
		{"unknown retention", "ORIGINAL_RETENTION", "archive"},
		{"unknown container", "RECORD_CONTAINER", "ogg"},
		{"surround channels", "RECORD_CHANNELS", "6"},
		{"unknown permission", "MICROPHONE_PERMISSION", "ask"},
		{"positive threshold", "LOUDNESS_THRESHOLD_DB", "10"},
		{"zero readiness delay", "READINESS_DELAY", "0s"},
		{"port out of range", "PORT", "70000"},
		{"interval longer than window", "SAMPLE_INTERVAL", "5s"},
		{"unknown log format", "LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_ArchiveRequiresS3(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARCHIVE_RECORDINGS", "true")
	t.Setenv("S3_BUCKET", "my-bucket")

	_, err := Load()
	assert.ErrorIs(t, err, ErrArchiveRequiresS3)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		RecordingsDir:      "/tmp/test",
		MeteringMode:       "native",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "access-key",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "native")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "access-key")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)

	// Capture output to verify it's JSON
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	testLogger := slog.New(handler)
	testLogger.Info("test message")

	// Should have JSON structure
	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestConfig_NewLogger_Level(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "warn",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
