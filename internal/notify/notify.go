// Package notify is the viewer's single notification channel: one transient,
// dismissible message with a severity and an expiry.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Default display durations.
const (
	InfoDuration  = 3 * time.Second
	AlertDuration = 5 * time.Second
)

// DefaultDuration returns the display duration used when Publish is given 0.
func (s Severity) DefaultDuration() time.Duration {
	if s == SeverityInfo {
		return InfoDuration
	}
	return AlertDuration
}

// Notification is one message shown to the user.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier holds at most one notification. A new one replaces the previous.
type Notifier struct {
	mu      sync.Mutex
	current *Notification
	now     func() time.Time
}

// New returns an empty Notifier.
func New() *Notifier {
	return &Notifier{now: time.Now}
}

// Publish replaces the current notification. A non-positive duration uses the
// severity's default.
func (n *Notifier) Publish(message string, severity Severity, duration time.Duration) Notification {
	if duration <= 0 {
		duration = severity.DefaultDuration()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	note := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
	}
	n.current = &note
	return note
}

// Info publishes an info notification with the default duration.
func (n *Notifier) Info(message string) Notification {
	return n.Publish(message, SeverityInfo, 0)
}

// Warn publishes a warning with the default duration.
func (n *Notifier) Warn(message string) Notification {
	return n.Publish(message, SeverityWarning, 0)
}

// Error publishes an error with the default duration.
func (n *Notifier) Error(message string) Notification {
	return n.Publish(message, SeverityError, 0)
}

// Current returns the active notification, if it has not expired.
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return Notification{}, false
	}
	if !n.now().Before(n.current.ExpiresAt) {
		n.current = nil
		return Notification{}, false
	}
	return *n.current, true
}

// Dismiss clears the current notification and reports whether there was one.
func (n *Notifier) Dismiss() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	had := n.current != nil && n.now().Before(n.current.ExpiresAt)
	n.current = nil
	return had
}
