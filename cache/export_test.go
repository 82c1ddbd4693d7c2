package cache

import "time"

func (c *ReadThrough[K, V]) SetClock(now func() time.Time) {
	c.now = now
}
