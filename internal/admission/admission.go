// Package admission is the fixed-window shock absorber in front of the
// check-in endpoints. It bounds the request rate of one process instance;
// the aggregate rate across instances can still exceed the limit, which is a
// documented property of the deployment, not a bug.
package admission

import (
	"sync"
	"time"
)

// Controller counts requests inside a fixed window. Each guarded endpoint
// owns exactly one Controller.
type Controller struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// New creates a controller admitting at most limit requests per window.
func New(limit int, window time.Duration) *Controller {
	return NewWithClock(limit, window, time.Now)
}

// NewWithClock injects the time source, for tests.
func NewWithClock(limit int, window time.Duration, now func() time.Time) *Controller {
	return &Controller{
		limit:       limit,
		window:      window,
		now:         now,
		windowStart: now(),
	}
}

// TryAdmit reports whether the request may proceed. Rejection is not an
// error: callers translate it into a rate-limited outcome and must not retry
// on the caller's behalf.
func (c *Controller) TryAdmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.windowStart) > c.window {
		c.windowStart = now
		c.count = 0
	}
	if c.count >= c.limit {
		return false
	}
	c.count++
	return true
}

// Reset clears the window, for tests.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windowStart = c.now()
	c.count = 0
}
