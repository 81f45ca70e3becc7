// Package clock provides an injectable time source so that billing
// decisions (activation windows, expiry, proration) are deterministic
// under test.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the real wall clock.
type System struct{}

// NewSystem creates a system clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current wall-clock time in UTC.
func (*System) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a Clock whose time is set explicitly. Safe for concurrent use.
type Fake struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFake creates a fake clock frozen at t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

// Now returns the frozen instant.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

// Set moves the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
