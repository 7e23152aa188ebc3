package registry

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Check is a check currently running.
type Check struct {
	Key        string    `json:"key"`
	DeliveryID string    `json:"delivery"`
	Started    time.Time `json:"started"`
}

// Registry tracks running checks by key so that at most one check runs per
// key at a time.
type Registry struct {
	mu     sync.Mutex
	active map[string]Check
	now    func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		active: make(map[string]Check),
		now:    time.Now,
	}
}

// Begin registers a check under key. It returns false, and a nil done, when a
// check with the same key is already running. Otherwise done unregisters the
// check and may be called more than once.
func (r *Registry) Begin(key, deliveryID string) (done func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.active[key]; running {
		return nil, false
	}
	r.active[key] = Check{Key: key, DeliveryID: deliveryID, Started: r.now()}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, key)
			r.mu.Unlock()
		})
	}, true
}

// Get returns the running check for key, if any.
func (r *Registry) Get(key string) (Check, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.active[key]
	return c, ok
}

// List returns the running checks, oldest first.
func (r *Registry) List() []Check {
	r.mu.Lock()
	checks := make([]Check, 0, len(r.active))
	for _, c := range r.active {
		checks = append(checks, c)
	}
	r.mu.Unlock()

	slices.SortFunc(checks, func(a, b Check) int {
		if c := a.Started.Compare(b.Started); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return checks
}

// Len returns the number of running checks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
