package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys caps the number of tracked per-client limiters so rotating
// source addresses cannot exhaust memory.
const maxTrackedKeys = 4096

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// rateLimiter applies a per-client token bucket. rpm <= 0 disables it.
type rateLimiter struct {
	mu      sync.Mutex
	rpm     int
	entries map[string]*limiterEntry
}

func newRateLimiter(rpm int) *rateLimiter {
	return &rateLimiter{rpm: rpm, entries: make(map[string]*limiterEntry)}
}

// Allow reports whether the key may proceed.
func (r *rateLimiter) Allow(key string) bool {
	if r.rpm <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if len(r.entries) >= maxTrackedKeys {
		for k, e := range r.entries {
			if now.Sub(e.lastSeen) >= time.Minute {
				delete(r.entries, k)
			}
		}
		for len(r.entries) >= maxTrackedKeys {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(float64(r.rpm)/60.0), burstFor(r.rpm))}
		r.entries[key] = e
	}
	e.lastSeen = now
	return e.lim.Allow()
}

func burstFor(rpm int) int {
	if rpm < 5 {
		return rpm
	}
	return 5
}

// clientKey buckets requests by source IP, ignoring the ephemeral port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
