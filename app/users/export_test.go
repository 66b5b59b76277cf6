package users

import "time"

// SetClock replaces the cache's time source.
func (c *MemoryCache) SetClock(now func() time.Time) { c.now = now }
