package testsupport

import (
	"sync"
	"time"
)

// StubClock is a settable clock for tests.
type StubClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewStubClock returns a clock frozen at start.
func NewStubClock(start time.Time) *StubClock {
	return &StubClock{current: start}
}

// Now returns the stubbed time.
func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to t.
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
