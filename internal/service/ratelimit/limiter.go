package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Each key starts full; buckets untouched
// for idleAfter are dropped on the next sweep.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*bucket
	now       func() time.Time
	idleAfter time.Duration
	lastSweep time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithIdleEviction(d time.Duration) Option {
	return func(l *Limiter) { l.idleAfter = d }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{m: make(map[string]*bucket), now: time.Now, idleAfter: 10 * time.Minute}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token for key, refilling at refillPerSec up to capacity.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(capacity, b.tokens+elapsed*refillPerSec)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) sweep(now time.Time) {
	if l.idleAfter <= 0 || now.Sub(l.lastSweep) < l.idleAfter {
		return
	}
	for k, b := range l.m {
		if now.Sub(b.last) >= l.idleAfter {
			delete(l.m, k)
		}
	}
	l.lastSweep = now
}
