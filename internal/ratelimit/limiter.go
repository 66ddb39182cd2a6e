// Package ratelimit throttles the unauthenticated auth endpoints so a
// single client cannot brute-force credentials. Gated routes rely on token
// auth instead; only login and registration are limited.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts attempts per key within a window.
type Store interface {
	// Allow records one attempt for key and reports whether it fit under
	// limit within the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Limiter applies one limit/window pair over a Store.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

// NewLimiter builds a limiter. A non-positive limit disables it.
func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow checks and records one attempt for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	if l == nil || l.limit <= 0 {
		return Result{Allowed: true, Limit: 0, Remaining: 1}, nil
	}
	return l.store.Allow(ctx, key, l.limit, l.window)
}
