package clock

import (
	"sync"
	"time"
)

// Clock fuente de tiempo inyectable (expiraciones, ventanas de renovación, granted_until).
type Clock interface {
	Now() time.Time
}

// Real usa el reloj del sistema en UTC.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// FakeClock reloj controlado para tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}
