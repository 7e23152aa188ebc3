// Package ratelimit keeps track of the API rate-limit counters reported by
// GitHub and logs them at most once per window.
package ratelimit

import (
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
)

// DefaultWindow is how long the tracker waits before logging a snapshot.
const DefaultWindow = 10 * time.Second

// Snapshot is the rate-limit state carried by a single API response.
type Snapshot struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// scheduleFunc runs f after d and returns a function that cancels it.
type scheduleFunc func(d time.Duration, f func()) (stop func() bool)

// Tracker coalesces bursts of rate-limit updates into throttled log lines.
//
// It is idle until the first Record, which arms a timer. Records that arrive
// while the timer is pending only overwrite the snapshot, so a window always
// logs the most recent values seen in it. When a record lands while a
// snapshot is being emitted the timer is re-armed for it straight away.
type Tracker struct {
	mu       sync.Mutex
	window   time.Duration
	schedule scheduleFunc
	emit     func(Snapshot)

	pending bool
	stop    func() bool
	latest  Snapshot
	seen    bool
	version uint64
	armed   uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWindow sets the throttling window.
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		t.window = d
	}
}

// WithLogger sets the logger snapshots are written to.
func WithLogger(logger *clog.Logger) Option {
	return func(t *Tracker) {
		t.emit = logEmitter(logger)
	}
}

// withScheduler replaces time.AfterFunc (for testing).
func withScheduler(s scheduleFunc) Option {
	return func(t *Tracker) {
		t.schedule = s
	}
}

// withEmitter replaces the log emitter (for testing).
func withEmitter(emit func(Snapshot)) Option {
	return func(t *Tracker) {
		t.emit = emit
	}
}

// NewTracker creates an idle tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		window:   DefaultWindow,
		schedule: afterFunc,
		emit:     logEmitter(clog.Default().WithPrefix("ratelimit")),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record stores the counters from a response and schedules a log emission
// unless one is already pending.
func (t *Tracker) Record(remaining, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = Snapshot{Remaining: remaining, Limit: limit}
	t.seen = true
	t.version++

	if t.pending {
		return
	}
	t.pending = true
	t.arm()
}

// arm schedules an emission. Callbacks of earlier armings become no-ops.
// The caller holds t.mu.
func (t *Tracker) arm() {
	t.armed++
	gen := t.armed
	t.stop = t.schedule(t.window, func() { t.fire(gen) })
}

// Latest returns the most recently recorded snapshot and whether any
// snapshot has been recorded yet.
func (t *Tracker) Latest() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.seen
}

// Stop cancels a pending emission. Later records re-arm the tracker.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending && t.stop != nil {
		t.stop()
	}
	t.armed++
	t.pending = false
	t.stop = nil
}

func (t *Tracker) fire(gen uint64) {
	t.mu.Lock()
	if !t.pending || gen != t.armed {
		t.mu.Unlock()
		return
	}
	snapshot := t.latest
	emitted := t.version
	t.mu.Unlock()

	t.emit(snapshot)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pending || gen != t.armed {
		return
	}
	if t.version != emitted {
		t.arm()
		return
	}
	t.pending = false
	t.stop = nil
}

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

func logEmitter(logger *clog.Logger) func(Snapshot) {
	return func(s Snapshot) {
		logger.Info("GitHub API rate limit", "remaining", s.Remaining, "limit", s.Limit)
	}
}
