package notifications

import (
	"sync"
	"time"

	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/observability"

	"github.com/google/uuid"
)

const (
	// DefaultDisplayTime is how long a notification stays on screen.
	DefaultDisplayTime = 5 * time.Second

	// MaxPending bounds the backlog behind the displayed notification. The
	// oldest waiting entries are dropped first.
	MaxPending = 100
)

// Queue holds notifications in arrival order and exposes one at a time.
// The displayed notification is dismissed automatically once its display
// time has elapsed, and the next one takes its place.
type Queue struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending []models.Notification
	current *models.Notification
	shownAt time.Time
}

// NewQueue returns an empty queue. ttl <= 0 uses DefaultDisplayTime.
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultDisplayTime
	}
	return &Queue{ttl: ttl, now: time.Now}
}

// Push enqueues a message and returns the stored notification.
func (q *Queue) Push(message, level string) models.Notification {
	n := models.Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Level:     level,
		CreatedAt: q.now().UTC(),
	}
	observability.NotificationsQueued.WithLabelValues(level).Inc()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, n)
	q.advance()
	if over := len(q.pending) - MaxPending; over > 0 {
		q.pending = append(q.pending[:0:0], q.pending[over:]...)
	}
	return n
}

// Current returns the notification on display, or nil.
func (q *Queue) Current() *models.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	if q.current == nil {
		return nil
	}
	n := *q.current
	return &n
}

// Dismiss removes the displayed notification before its time is up.
func (q *Queue) Dismiss() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	if q.current != nil {
		q.current = nil
		q.shownAt = q.now()
	}
	q.advance()
}

// Len reports the notifications waiting behind the displayed one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advance()
	return len(q.pending)
}

// advance retires expired notifications. Each queued notification gets its
// full display time starting when the previous one is retired.
func (q *Queue) advance() {
	now := q.now()
	for {
		if q.current != nil {
			expires := q.shownAt.Add(q.ttl)
			if now.Before(expires) {
				return
			}
			q.current = nil
			q.shownAt = expires
		}
		if len(q.pending) == 0 {
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.current = &next
		if q.shownAt.IsZero() || q.shownAt.Before(next.CreatedAt) {
			q.shownAt = next.CreatedAt
		}
		if q.shownAt.After(now) {
			q.shownAt = now
		}
	}
}
