package cacheproxy

import "context"

// Store is the optional, best-effort secondary persistence layer that may
// sit behind the in-memory Cache. It is never consulted or written to
// while the Cache's mutex is held; writes happen after put() returns, and
// reads (when WithStoreOnMissLookup is set) happen only on a MISS
// classification, before the Handler is told the entry is missing.
//
// Implementations of Store (see the store/ subpackages) wrap a concrete
// backend — Redis, Memcached, LevelDB, etc. — behind this single
// Get/Set/Delete shape.
type Store interface {
	// Get returns the serialized CacheEntry bytes for key, or (nil, false,
	// nil) if absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the serialized CacheEntry bytes for key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes any entry for key.
	Delete(ctx context.Context, key string) error
}
