// Package storage manages finished recording artifacts. It defines the
// Storage interface (port) and implementations for local disk and an
// optional S3 archive.
package storage

import (
	"context"
	"errors"
)

// Static errors for storage operations.
var (
	// ErrNotFound is returned when the artifact to delete does not exist.
	ErrNotFound = errors.New("recording not found")
	// ErrS3NotConfigured is returned when archiving is attempted
	// without an S3 bucket.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
)

// Storage defines how recording artifacts are removed and archived.
type Storage interface {
	// Delete removes the recording at path.
	// Returns ErrNotFound if nothing exists at path.
	Delete(ctx context.Context, path string) error

	// Archive copies the recording at path to persistent storage and
	// returns its URL. Returns ErrS3NotConfigured if no archive exists.
	Archive(ctx context.Context, path string) (url string, err error)
}
