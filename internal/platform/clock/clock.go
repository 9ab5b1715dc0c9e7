package clock

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock reads so time-dependent invariants
// (invoice due dates, outbox retry eligibility, lease expiry) are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Frozen is a manually-advanced clock for tests.
type Frozen struct {
	mu  sync.Mutex
	now time.Time
}

func NewFrozen(at time.Time) *Frozen {
	return &Frozen{now: at.UTC()}
}

func (f *Frozen) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Frozen) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *Frozen) Set(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = at.UTC()
}
