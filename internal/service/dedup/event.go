package dedup

import (
	"strings"
	"sync"
	"time"
)

const (
	// EventBucket is the coalescing window for identical event-log lines.
	EventBucket = time.Second
	// EventRetention is how long a recorded event key blocks repeats.
	EventRetention = 5 * time.Second
)

type eventKey struct {
	text   string
	bucket int64
}

type eventEntry struct {
	timer Timer
}

// EventFilter suppresses status/diagnostic lines repeated within the same one-second
// bucket. Keys evict themselves after EventRetention.
type EventFilter struct {
	clock Clock

	mu      sync.Mutex
	entries map[eventKey]*eventEntry
}

// NewEventFilter returns an empty filter. A nil clock uses the wall clock.
func NewEventFilter(clock Clock) *EventFilter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &EventFilter{
		clock:   clock,
		entries: make(map[eventKey]*eventEntry),
	}
}

// ShouldSuppress reports whether text was already logged in the current bucket.
// Blank text is always suppressed.
func (f *EventFilter) ShouldSuppress(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}

	key := eventKey{text: text, bucket: f.clock.Now().UnixMilli() / EventBucket.Milliseconds()}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entries[key]; ok {
		return true
	}

	entry := &eventEntry{}
	f.entries[key] = entry
	entry.timer = f.clock.AfterFunc(EventRetention, func() {
		f.expire(key, entry)
	})
	return false
}

func (f *EventFilter) expire(key eventKey, entry *eventEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// A Reset followed by a fresh record of the same key must not be evicted early.
	if current, ok := f.entries[key]; ok && current == entry {
		delete(f.entries, key)
	}
}

// Len returns the number of live keys.
func (f *EventFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Reset forgets every key and cancels pending expiries.
func (f *EventFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	f.entries = make(map[eventKey]*eventEntry)
}
