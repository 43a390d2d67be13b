package telemetry

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Limiter enforces a per-device sample rate. Limiters of idle devices are
// evicted so the table stays bounded.
type Limiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	every    rate.Limit
	burst    int
}

// NewLimiter allows perSecond samples per device with the given burst.
// A non-positive perSecond disables limiting.
func NewLimiter(perSecond float64, burst, maxDevices int, idle time.Duration) *Limiter {
	if perSecond <= 0 {
		return &Limiter{every: rate.Inf}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](maxDevices, nil, idle),
		every:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow reports whether deviceID may deliver another sample now
func (l *Limiter) Allow(deviceID string) bool {
	if l == nil || l.every == rate.Inf {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters.Get(deviceID)
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters.Add(deviceID, lim)
	}
	return lim.Allow()
}
