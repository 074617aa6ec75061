package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter hands out one token bucket per client source. A non-positive
// rate disables limiting.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*limiterEntry
	lastSweep time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*limiterEntry),
	}
}

func (c *clientLimiter) Allow(source string, now time.Time) bool {
	if c == nil || c.limit <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) >= time.Minute {
		for id, entry := range c.visitors {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(c.visitors, id)
			}
		}
		c.lastSweep = now
	}
	entry, ok := c.visitors[source]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.visitors[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
