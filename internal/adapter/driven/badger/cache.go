package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CacheBackend = (*Cache)(nil)

// Cache is a CacheBackend on BadgerDB. Expiry is enforced by Badger itself:
// an expired entry is never returned and is dropped at compaction.
type Cache struct {
	db *DB
}

// NewCache creates a Cache on db.
func NewCache(db *DB) *Cache {
	return &Cache{db: db}
}

// Get returns the value stored under key unless it is missing or expired.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte

	err := c.db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry %q: %w", key, err)
	}

	return value, true, nil
}

// Set stores value under key. A ttl <= 0 stores it without expiry.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}

	err := c.db.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("set cache entry %q: %w", key, err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(_ context.Context, key string) error {
	err := c.db.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete cache entry %q: %w", key, err)
	}

	return nil
}
