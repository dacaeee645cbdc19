// Package dedup suppresses repeated sightings of the same text within a time window.
package dedup

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// Defaults for a Window.
const (
	DefaultWindow = time.Second
	DefaultSize   = 1024
)

type key struct {
	channel string
	text    string
}

// Window remembers when each (channel, text) pair was last accepted.
// The window is measured from the last accepted sighting, so a line that
// stays on screen is reported again once per window at most.
type Window struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	window time.Duration
	seen   *lru.Cache[key, time.Time]
}

// New creates a window. A nil clock uses the real clock.
func New(window time.Duration, size int, clock clockwork.Clock) *Window {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if size <= 0 {
		size = DefaultSize
	}
	seen, _ := lru.New[key, time.Time](size) // only errors on size <= 0
	return &Window{clock: clock, window: window, seen: seen}
}

// Allow reports whether text on channel should be forwarded now.
func (w *Window) Allow(channel, text string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	k := key{channel: channel, text: text}
	now := w.clock.Now()
	if last, ok := w.seen.Get(k); ok && now.Sub(last) < w.window {
		return false
	}
	w.seen.Add(k, now)
	return true
}

// Forget clears the record for text on channel.
func (w *Window) Forget(channel, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen.Remove(key{channel: channel, text: text})
}

// Reset clears every record.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen.Purge()
}
