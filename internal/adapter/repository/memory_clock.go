package repository

import (
	"sync"
	"time"
)

// memoryClock hands out strictly increasing timestamps so ordering in the in-memory store
// never depends on the resolution of the wall clock.
type memoryClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newMemoryClock(now func() time.Time) *memoryClock {
	if now == nil {
		now = time.Now
	}
	return &memoryClock{now: now}
}

func (c *memoryClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// signal wakes a watcher without blocking; a pending wake-up already covers the new change.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
