// Package otp provides a keyed store for short-lived secrets such as
// one-time confirmation codes. Entries expire after a per-entry TTL and
// are never returned once expired.
package otp

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("otp: entry not found")

// Store holds values that expire after a TTL.
type Store interface {
	// Get returns the value for key, or ErrNotFound if it is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Put stores value under key, replacing any previous entry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Incr adds one to the counter under key and returns the new count. A
	// new counter expires after ttl; later increments keep that expiry.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// SweepExpired removes expired entries and reports how many were removed.
	SweepExpired(ctx context.Context) (int, error)
}
