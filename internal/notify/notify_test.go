package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestNotifier() (*Notifier, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	n := New()
	n.now = clock.now
	return n, clock
}

func TestNotifier_DefaultDurations(t *testing.T) {
	n, _ := newTestNotifier()

	info := n.Info("saved")
	assert.Equal(t, InfoDuration, info.ExpiresAt.Sub(info.CreatedAt))
	assert.Equal(t, SeverityInfo, info.Severity)
	assert.NotEmpty(t, info.ID)

	warn := n.Warn("could not persist")
	assert.Equal(t, AlertDuration, warn.ExpiresAt.Sub(warn.CreatedAt))

	errNote := n.Error("catalog failed to load")
	assert.Equal(t, AlertDuration, errNote.ExpiresAt.Sub(errNote.CreatedAt))
	assert.NotEqual(t, warn.ID, errNote.ID)
}

func TestNotifier_SingleSlot(t *testing.T) {
	n, _ := newTestNotifier()

	n.Info("first")
	second := n.Warn("second")

	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestNotifier_Expiry(t *testing.T) {
	n, clock := newTestNotifier()

	n.Publish("short", SeverityError, time.Second)

	clock.advance(999 * time.Millisecond)
	_, ok := n.Current()
	assert.True(t, ok)

	clock.advance(time.Millisecond)
	_, ok = n.Current()
	assert.False(t, ok, "expired notifications are gone")
}

func TestNotifier_Dismiss(t *testing.T) {
	n, clock := newTestNotifier()

	assert.False(t, n.Dismiss(), "nothing to dismiss")

	n.Info("hello")
	assert.True(t, n.Dismiss())
	_, ok := n.Current()
	assert.False(t, ok)

	n.Info("again")
	clock.advance(InfoDuration)
	assert.False(t, n.Dismiss(), "expired notification does not count")
}
