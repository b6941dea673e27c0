// Package atomic_clock is atomic int64 wall clock, e.g. when a telemetry register was last written.
// Zero value is "never set".
package atomic_clock

import (
	"sync/atomic"
	"time"
)

type Clock struct{ v int64 }

func (c *Clock) get() int64 { return atomic.LoadInt64(&c.v) }

// IsZero reports the clock was never set.
func (c *Clock) IsZero() bool { return c.get() == 0 }

func (c *Clock) SetNow()             { c.SetTime(time.Now()) }
func (c *Clock) SetTime(t time.Time) { atomic.StoreInt64(&c.v, t.UnixNano()) }

// Time returns zero time.Time for zero clock.
func (c *Clock) Time() time.Time {
	v := c.get()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}
