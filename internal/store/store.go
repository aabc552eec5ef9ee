package store

import (
	"context"
	"time"
)

// Store is the shared key-value surface used for sessions, carts, profiles,
// rate markers and stats counters. Multiple service instances may share one
// store, so callers must re-read before mutating.
type Store interface {
	// Get returns the value for key or errs.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments an integer counter and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Keys lists keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
