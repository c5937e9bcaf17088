package database

import (
	"sync"
	"time"
)

// MonotonicClock hands out strictly increasing UTC timestamps at microsecond precision,
// the finest resolution every supported driver persists.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewMonotonicClock builds a clock over source, defaulting to time.Now.
func NewMonotonicClock(source func() time.Time) *MonotonicClock {
	if source == nil {
		source = time.Now
	}
	return &MonotonicClock{now: source}
}

// Now returns the next timestamp.
func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

var serverClock = NewMonotonicClock(nil)

// Now is the server-assigned timestamp source used for every persisted write.
func Now() time.Time {
	return serverClock.Now()
}
