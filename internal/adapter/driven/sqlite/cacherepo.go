package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CacheBackend = (*CacheRepo)(nil)
var _ driven.CachePurger = (*CacheRepo)(nil)

// CacheRepo is a CacheBackend stored in the cache_entries table. Expired
// entries are invisible to Get and removed by PurgeExpired.
type CacheRepo struct {
	db  *DB
	now func() time.Time
}

// NewCacheRepo creates a new CacheRepo backed by the given DB.
func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db, now: time.Now}
}

// Get returns the value stored under key unless it is missing or expired.
func (r *CacheRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const query = `
		SELECT value
		FROM cache_entries
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
	`

	var value []byte
	err := r.db.queryRow(ctx, query, key, r.now().UnixMilli()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry %q: %w", key, err)
	}

	return value, true, nil
}

// Set stores value under key, replacing any previous entry.
func (r *CacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const query = `
		INSERT INTO cache_entries (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`

	var expiresAt any
	if ttl > 0 {
		expiresAt = r.now().Add(ttl).UnixMilli()
	}

	if _, err := r.db.exec(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("set cache entry %q: %w", key, err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *CacheRepo) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM cache_entries WHERE key = ?`

	if _, err := r.db.exec(ctx, query, key); err != nil {
		return fmt.Errorf("delete cache entry %q: %w", key, err)
	}

	return nil
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (r *CacheRepo) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`

	result, err := r.db.exec(ctx, query, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge expired cache entries: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return removed, nil
}
