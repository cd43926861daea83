package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memoryEntry struct {
	limit    int
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter implements an in-memory token bucket per key. The bucket
// refills at limit tokens per second with a burst of limit.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
	}
}

// Allow takes one token from the key's bucket.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.counters[key]
	if entry == nil || entry.limit != limit {
		entry = &memoryEntry{limit: limit, limiter: rate.NewLimiter(rate.Limit(limit), limit)}
		l.counters[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	tokens := entry.limiter.TokensAt(now)
	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}
	reset := now
	if tokens < 1 {
		wait := time.Duration((1 - tokens) / float64(limit) * float64(time.Second))
		reset = now.Add(wait)
	}
	return Result{Allowed: allowed, Remaining: remaining, Reset: reset.UTC()}, nil
}

// Sweep drops buckets idle since before cutoff and returns how many were removed.
func (l *MemoryLimiter) Sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, entry := range l.counters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}
