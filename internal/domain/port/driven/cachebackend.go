package driven

import (
	"context"
	"time"
)

// CacheBackend is a generic key-value store with per-entry expiry.
// Get reports a missing or expired key with found == false and a nil error;
// a non-nil error means the backend itself is unavailable.
type CacheBackend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key. A ttl <= 0 stores the value without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CachePurger is implemented by cache backends that keep expired entries
// until they are swept.
type CachePurger interface {
	// PurgeExpired deletes expired entries and returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}
