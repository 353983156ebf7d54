// Package store provides the shared counter store used by the throttling and
// telemetry core. All mutable cross-instance state lives behind the Counter
// interface; atomicity guarantees come from the backing store, never from
// in-process locks, so multiple service instances can share one backend.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by store implementations.
var (
	ErrStoreClosed = errors.New("store is closed")
	ErrInvalidKey  = errors.New("invalid key")
)

// Counter is the contract every core component depends on. Keys are
// independent; no operation spans more than one key.
type Counter interface {
	// Get returns the raw value for key. The second return reports whether
	// the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetWithTTL stores value under key, replacing any previous value and
	// resetting the expiry.
	SetWithTTL(ctx context.Context, key string, value string, ttl time.Duration) error

	// IncrementWithCap atomically increments the integer at key unless the
	// increment would exceed cap. It returns the counter value after the
	// call and whether the increment was applied. The TTL is set only when
	// the key is created, never extended on later calls.
	IncrementWithCap(ctx context.Context, key string, cap int64, ttl time.Duration) (int64, bool, error)

	// HIncrBy increments an integer field inside the hash at key and
	// sets/extends the key's expiry.
	HIncrBy(ctx context.Context, key, field string, delta int64, ttl time.Duration) error

	// HGetAll returns all fields of the hash at key. A missing key yields an
	// empty map and no error.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// PushBounded appends value to the list at key, evicting the oldest
	// entries once the list exceeds cap, and sets/extends the key's expiry.
	PushBounded(ctx context.Context, key, value string, cap int64, ttl time.Duration) error

	// ListRange returns list entries between start and stop inclusive,
	// newest first. Negative stop counts from the end as in Redis LRANGE.
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
