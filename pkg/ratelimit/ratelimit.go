package ratelimit

import "context"

// Limiter counts attempts per key within an expiring window. The port
// is store-agnostic so the in-memory adapter can be swapped for an
// external keyed counter (any store with per-key TTL) without touching
// callers.
type Limiter interface {
	// Allow records an attempt for the key and reports whether it is
	// still within the allowed budget for the current window.
	Allow(ctx context.Context, key string) (bool, error)

	// Reset clears the counter for a key, e.g. after a successful login.
	Reset(ctx context.Context, key string) error
}
