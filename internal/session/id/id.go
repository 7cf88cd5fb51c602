// Package id provides unique identifier generation for recordings.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique recording name.
// Format: rec-<timestamp>-<random>
// Example: rec-1701432000-a1b2c3d4
func Generate() string {
	u, err := uuid.NewRandom()
	if err != nil {
		// Fallback to a nanosecond timestamp if the random source fails
		return fmt.Sprintf("rec-%d", time.Now().UnixNano())
	}
	short := strings.ReplaceAll(u.String(), "-", "")[:8]
	return fmt.Sprintf("rec-%d-%s", time.Now().Unix(), short)
}
