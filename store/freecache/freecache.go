// Package freecache provides an in-process, size-bounded cacheproxy.Store
// backed by github.com/coocood/freecache. Unlike the unbounded in-memory
// Cache, this backend evicts under an LRU-ish policy once its fixed byte
// budget is full, so it doubles as the bounded-memory tier operators can
// plug in without touching the Cache contract.
package freecache

import (
	"context"
	"fmt"

	"github.com/coocood/freecache"
)

// Store is a cacheproxy.Store backed by a fixed-size freecache instance.
type Store struct {
	cache *freecache.Cache
}

// New creates a Store with the given size in bytes (512KB minimum, per
// freecache's own floor).
func New(sizeBytes int) *Store {
	return &Store{cache: freecache.NewCache(sizeBytes)}
}

// Get implements cacheproxy.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := s.cache.Get([]byte(key))
	if err != nil {
		if err == freecache.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("freecache: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements cacheproxy.Store. Entries carry no expiration of their
// own; eviction happens only when the fixed-size arena fills.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.cache.Set([]byte(key), value, 0); err != nil {
		return fmt.Errorf("freecache: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.cache.Del([]byte(key))
	return nil
}

// EntryCount returns the number of entries currently held.
func (s *Store) EntryCount() int64 { return s.cache.EntryCount() }

// HitRate returns the ratio of cache hits to total lookups.
func (s *Store) HitRate() float64 { return s.cache.HitRate() }

// EvacuateCount returns how many entries were evicted to make room for new
// ones, the signal operators watch to decide whether to raise the size.
func (s *Store) EvacuateCount() int64 { return s.cache.EvacuateCount() }
