// Package memcache provides a memcached-backed cacheproxy.Store via
// gomemcache.
package memcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
)

// Store is a cacheproxy.Store backed by one or more memcached servers.
type Store struct {
	client *memcache.Client
}

// storeKey hashes the cache key: memcached keys must not contain spaces or
// control characters and are capped at 250 bytes, neither of which holds
// for a canonicalized request line.
func storeKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return "httpproxy:" + hex.EncodeToString(hash[:])
}

// New returns a Store using the provided memcached server(s) with equal
// weight. If a server is listed multiple times, it gets a proportional
// amount of weight, per gomemcache's own ServerList semantics.
func New(servers ...string) *Store {
	return &Store{client: memcache.New(servers...)}
}

// NewWithClient wraps an already-constructed gomemcache client.
func NewWithClient(client *memcache.Client) *Store {
	return &Store{client: client}
}

// Get implements cacheproxy.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := s.client.Get(storeKey(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("memcache: get %q: %w", key, err)
	}
	return item.Value, true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.client.Set(&memcache.Item{Key: storeKey(key), Value: value})
	if err != nil {
		return fmt.Errorf("memcache: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.client.Delete(storeKey(key))
	if err != nil && err != memcache.ErrCacheMiss {
		return fmt.Errorf("memcache: delete %q: %w", key, err)
	}
	return nil
}
