package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements Limiter with an in-memory counter per key.
// Each counter lives for one window; the first attempt after expiry
// starts a fresh window.
type MemoryLimiter struct {
	mu          sync.Mutex
	counters    map[string]*counter
	window      time.Duration
	maxAttempts int
}

// counter tracks attempts for one key within the current window
type counter struct {
	attempts  int
	expiresAt time.Time
}

// NewMemoryLimiter creates a new in-memory limiter.
// window: how long attempts are remembered
// maxAttempts: attempts allowed per window
func NewMemoryLimiter(window time.Duration, maxAttempts int) *MemoryLimiter {
	l := &MemoryLimiter{
		counters:    make(map[string]*counter),
		window:      window,
		maxAttempts: maxAttempts,
	}

	// Start cleanup goroutine to remove expired counters
	go l.cleanup()

	return l
}

// Allow records an attempt for the key and reports whether the key is
// still within budget.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, exists := l.counters[key]
	if !exists || now.After(c.expiresAt) {
		l.counters[key] = &counter{attempts: 1, expiresAt: now.Add(l.window)}
		return true, nil
	}

	c.attempts++
	return c.attempts <= l.maxAttempts, nil
}

// Reset clears the counter for a given key
func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.counters, key)
	return nil
}

// cleanup removes expired counters periodically
func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.cleanupExpired()
	}
}

// cleanupExpired removes counters whose window has passed
func (l *MemoryLimiter) cleanupExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, c := range l.counters {
		if now.After(c.expiresAt) {
			delete(l.counters, key)
		}
	}
}
