package metrics

import (
	"sync"
	"time"
)

// Snapshot is the registry's published view: the latest mapped set
// plus the outcome of the most recent poll. Initialized is false until
// the first successful publish, letting scrape clients tell "never
// polled" apart from "device reports zero".
type Snapshot struct {
	Set         Set
	Initialized bool
	OK          bool
	LastError   error
	LastAttempt time.Time
}

// Registry holds the most recent snapshot under a single writer (the
// scheduler) and arbitrary concurrent readers (scrapes). Readers never
// observe a partially updated set; the snapshot is replaced wholesale
// under the lock.
type Registry struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Publish replaces the snapshot with the result of a successful poll.
func (r *Registry) Publish(s Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = Snapshot{
		Set:         s,
		Initialized: true,
		OK:          true,
		LastAttempt: time.Now(),
	}
}

// PublishError records a failed poll. The previously published set is
// retained so scrapes keep serving last-known-good values; only the
// health fields change.
func (r *Registry) PublishError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.OK = false
	r.snap.LastError = err
	r.snap.LastAttempt = time.Now()
}

// Current returns the published snapshot. Safe to call concurrently
// with Publish and with other readers.
func (r *Registry) Current() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}
