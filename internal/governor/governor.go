// Package governor enforces per-provider request quotas over sliding
// minute and day windows. A denial is immediate; there are no blocking
// or waiting semantics, the caller simply excludes the provider from the
// current invocation round.
package governor

import (
	"sync"
	"time"
)

// Governor tracks usage per provider. Each provider has its own counter
// and lock, so unrelated providers never contend.
type Governor struct {
	mu       sync.RWMutex
	counters map[string]*counter
	now      func() time.Time
}

type counter struct {
	mu     sync.Mutex
	rpm    int // 0 = unlimited
	rpd    int
	minute []time.Time
	day    []time.Time
}

// New creates an empty Governor.
func New() *Governor {
	return &Governor{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// SetClock replaces the time source. Tests use this to avoid real waits.
func (g *Governor) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Register installs quota limits for a provider. A zero limit disables
// that horizon.
func (g *Governor) Register(name string, rpm, rpd int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[name] = &counter{rpm: rpm, rpd: rpd}
}

// Acquire reports whether the provider may be invoked now and, if so,
// charges one request against both windows. Unregistered providers are
// always allowed.
func (g *Governor) Acquire(name string) bool {
	g.mu.RLock()
	c, ok := g.counters[name]
	now := g.now()
	g.mu.RUnlock()
	if !ok {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.minute = prune(c.minute, now.Add(-time.Minute))
	c.day = prune(c.day, now.Add(-24*time.Hour))

	if c.rpm > 0 && len(c.minute) >= c.rpm {
		return false
	}
	if c.rpd > 0 && len(c.day) >= c.rpd {
		return false
	}

	c.minute = append(c.minute, now)
	c.day = append(c.day, now)
	return true
}

// Usage returns the current minute and day counts for a provider after
// lazy pruning. Used by the providers CLI and by tests.
func (g *Governor) Usage(name string) (minute, day int) {
	g.mu.RLock()
	c, ok := g.counters[name]
	now := g.now()
	g.mu.RUnlock()
	if !ok {
		return 0, 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.minute = prune(c.minute, now.Add(-time.Minute))
	c.day = prune(c.day, now.Add(-24*time.Hour))
	return len(c.minute), len(c.day)
}

// prune discards timestamps at or before the cutoff. Stamps are appended
// in order, so a single scan finds the boundary.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[i:]...)
}
