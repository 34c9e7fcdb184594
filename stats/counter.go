package stats

import "go.uber.org/atomic"

// Counter_t is a cheap counter for hot paths and tests; unlike the
// prometheus metrics it is per object, not global.
type Counter_t struct {
	n atomic.Int64
}

func (c *Counter_t) Inc() {
	c.n.Inc()
}

func (c *Counter_t) Load() int64 {
	return c.n.Load()
}
