// Package ratelimit implements a per-remote-IP token bucket gate in front
// of the push endpoint, per SPEC_FULL.md §4.7.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks one token bucket per remote IP, reaping entries idle
// longer than ttl.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	rps     rate.Limit
	burst   int
	ttl     time.Duration
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// New builds a Limiter allowing rps sustained requests/sec and burst
// requests in a burst, per key (IP).
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     10 * time.Minute,
	}
}

// Allow reports whether a request from ip may proceed right now.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.entries[ip]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[ip] = e
	}
	e.lastAccess = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// Reap removes entries idle longer than the configured TTL. Intended to be
// called periodically from a background goroutine so the map does not grow
// unbounded across the lifetime of the process.
func (l *Limiter) Reap() {
	cutoff := time.Now().Add(-l.ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.entries {
		if e.lastAccess.Before(cutoff) {
			delete(l.entries, ip)
		}
	}
}
