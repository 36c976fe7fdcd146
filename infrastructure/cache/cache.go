package cache

import (
	"context"
	"time"
)

// Store is the fast ephemeral counter/flag collaborator: string-keyed
// values with atomic increment, delete, existence check and TTL
// control. Counters and liveness flags are shared mutable state across
// instances; these primitives are the synchronization boundary.
type Store interface {
	// Incr atomically adds one to the integer at key, creating it at 1
	// when absent.
	Incr(ctx context.Context, key string) (int64, error)
	// GetInt returns the integer at key, zero when absent.
	GetInt(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// SetTTL stores value at key with the given time to live.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Expire refreshes the TTL of an existing key. Missing keys are a
	// no-op, not an error.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}
