package session

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	tests := []struct {
		severity  Severity
		wantLevel string
	}{
		{SeverityWarning, "WARN"},
		{SeverityError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			var buf bytes.Buffer
			n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

			n.Notify(Notification{
				Severity: tt.severity,
				Title:    "Warning",
				Message:  MsgTooNoisy,
				Time:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			})

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "Warning", entry["msg"])
			assert.Equal(t, MsgTooNoisy, entry["message"])
		})
	}
}

func TestNewLogNotifier_NilLogger(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NotNil(t, n.logger)
}
