package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEventFilterCoalescesWithinBucket(t *testing.T) {
	clock := newFakeClock(epoch)
	f := NewEventFilter(clock)

	assert.False(t, f.ShouldSuppress("Token de sesión recibido"))
	clock.Advance(400 * time.Millisecond)
	assert.True(t, f.ShouldSuppress("Token de sesión recibido"))
	assert.False(t, f.ShouldSuppress("otro evento"))
}

func TestEventFilterNewBucketIsNotSuppressed(t *testing.T) {
	clock := newFakeClock(epoch.Add(900 * time.Millisecond))
	f := NewEventFilter(clock)

	assert.False(t, f.ShouldSuppress("ping"))
	clock.Advance(200 * time.Millisecond)
	assert.False(t, f.ShouldSuppress("ping"), "floor(now/1s) moved to the next bucket")
}

func TestEventFilterKeysExpire(t *testing.T) {
	clock := newFakeClock(epoch)
	f := NewEventFilter(clock)

	assert.False(t, f.ShouldSuppress("Conectando"))
	assert.Equal(t, 1, f.Len())

	clock.Advance(EventRetention - time.Millisecond)
	assert.Equal(t, 1, f.Len())

	clock.Advance(time.Millisecond)
	assert.Equal(t, 0, f.Len())
	assert.False(t, f.ShouldSuppress("Conectando"))
}

func TestEventFilterExpiryIsPerKey(t *testing.T) {
	clock := newFakeClock(epoch)
	f := NewEventFilter(clock)

	assert.False(t, f.ShouldSuppress("a"))
	clock.Advance(2 * time.Second)
	assert.False(t, f.ShouldSuppress("b"))

	clock.Advance(3 * time.Second)
	assert.Equal(t, 1, f.Len(), "only a has expired")

	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, f.Len())
}

func TestEventFilterBlankSuppressed(t *testing.T) {
	f := NewEventFilter(newFakeClock(epoch))
	assert.True(t, f.ShouldSuppress(""))
	assert.True(t, f.ShouldSuppress("   "))
	assert.Equal(t, 0, f.Len())
}

func TestEventFilterResetCancelsExpiry(t *testing.T) {
	clock := newFakeClock(epoch)
	f := NewEventFilter(clock)

	assert.False(t, f.ShouldSuppress("x"))
	f.Reset()
	assert.Equal(t, 0, f.Len())

	clock.Advance(3 * time.Second)
	assert.False(t, f.ShouldSuppress("x"))

	// Timers stopped by Reset never fire.
	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, f.Len())

	clock.Advance(3 * time.Second)
	assert.Equal(t, 0, f.Len())
}

func TestEventFilterWallClock(t *testing.T) {
	f := NewEventFilter(nil)
	assert.False(t, f.ShouldSuppress("wall"))
	f.Reset()
}
