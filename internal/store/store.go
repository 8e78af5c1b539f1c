// Package store provides the shared expiring key-value store backing rate
// limit counters, behavior profiles, relay stats and the runtime delivery
// mode. The interface is deliberately small so the redis-backed and
// in-process implementations stay interchangeable.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("key not found")

// Store is the capability surface the pipeline needs. All operations are
// atomic per key; no multi-key transactions are required.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetWithTTL writes key with the given expiry. A zero ttl means no
	// expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// IncrWithTTL atomically increments the counter at key, (re)setting its
	// expiry, and returns the new value.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
