package study

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing epoch-millisecond timestamps, so two
// entries written in the same millisecond still sort deterministically.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Next returns the current time in millis, bumped past the previous value
// when the wall clock has not advanced (or went backwards).
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// Today is the current wall-clock time in UTC.
func (c *Clock) Today() time.Time {
	return c.now().UTC()
}
