package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether another attempt for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// InMemoryLimiter keeps one x/time/rate limiter per key and forgets keys
// that have been idle for maxAge.
type InMemoryLimiter struct {
	rate   rate.Limit
	burst  int
	maxAge time.Duration

	mu       sync.Mutex
	limiters map[string]*entry
	lastGC   time.Time
	nowFn    func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewInMemoryLimiter(rps float64, burst int) *InMemoryLimiter {
	return &InMemoryLimiter{
		rate:     rate.Limit(rps),
		burst:    burst,
		maxAge:   10 * time.Minute,
		limiters: map[string]*entry{},
		nowFn:    time.Now,
	}
}

func (l *InMemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if now.Sub(l.lastGC) > l.maxAge {
		l.gc(now)
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1), nil
}

func (l *InMemoryLimiter) gc(now time.Time) {
	cutoff := now.Add(-l.maxAge)
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
	l.lastGC = now
}
