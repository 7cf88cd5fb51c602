package session

import (
	"context"
	"log/slog"
	"time"
)

// Severity classifies a notification.
type Severity string

const (
	// SeverityWarning is used for rejected actions that can be retried.
	SeverityWarning Severity = "warning"
	// SeverityError is used for failed actions.
	SeverityError Severity = "error"
)

// Notification is a blocking user alert raised by destructive actions.
type Notification struct {
	Severity Severity
	Title    string
	Message  string
	Time     time.Time
}

// Notifier delivers notifications to the user.
// Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. If logger is nil, slog.Default() is used.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(note Notification) {
	level := slog.LevelError
	if note.Severity == SeverityWarning {
		level = slog.LevelWarn
	}
	n.logger.Log(context.Background(), level, note.Title,
		slog.String("message", note.Message),
		slog.Time("time", note.Time),
	)
}

// Verify interface implementation at compile time.
var _ Notifier = (*LogNotifier)(nil)
