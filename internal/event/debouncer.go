package event

import (
	"sync"
	"time"
)

// maxTracked is how many keys are remembered before stale ones are pruned.
const maxTracked = 1024

// Debouncer prevents duplicate events within a time window.
type Debouncer struct {
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
	mu     sync.Mutex
}

// NewDebouncer creates a new debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// ShouldProcess returns true if the event should be processed.
// Returns false if the same pull request head was processed recently.
func (d *Debouncer) ShouldProcess(e *Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := e.Key()
	now := d.now()

	if lastSeen, ok := d.seen[key]; ok {
		if now.Sub(lastSeen) < d.window {
			return false
		}
	}

	if len(d.seen) >= maxTracked {
		d.prune(now)
	}
	d.seen[key] = now
	return true
}

// Cleanup removes old entries from the seen map.
func (d *Debouncer) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prune(d.now())
}

func (d *Debouncer) prune(now time.Time) {
	threshold := now.Add(-d.window * 2)
	for key, t := range d.seen {
		if t.Before(threshold) {
			delete(d.seen, key)
		}
	}
}

// Len returns how many keys are tracked.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
