package server

import (
	"sync"

	"github.com/maauso/audioheuristics/internal/session"
)

// DefaultAlertCapacity bounds the pending notifications kept for the UI.
const DefaultAlertCapacity = 32

// AlertQueue keeps session notifications until the UI drains them.
// When full, the oldest notification is dropped.
type AlertQueue struct {
	mu       sync.Mutex
	capacity int
	pending  []session.Notification
}

// NewAlertQueue creates an AlertQueue. A non-positive capacity uses
// DefaultAlertCapacity.
func NewAlertQueue(capacity int) *AlertQueue {
	if capacity <= 0 {
		capacity = DefaultAlertCapacity
	}
	return &AlertQueue{capacity: capacity}
}

// Notify implements session.Notifier.
func (q *AlertQueue) Notify(n session.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == q.capacity {
		q.pending = q.pending[1:]
	}
	q.pending = append(q.pending, n)
}

// Drain returns and removes every pending notification, oldest first.
func (q *AlertQueue) Drain() []session.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Verify interface implementation at compile time.
var _ session.Notifier = (*AlertQueue)(nil)
