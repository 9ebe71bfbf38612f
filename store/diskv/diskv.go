// Package diskv provides a flat-file on-disk cacheproxy.Store backed by
// github.com/peterbourgon/diskv, a simpler alternative to the leveldb Store
// for small deployments that don't need LSM-tree storage.
package diskv

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/peterbourgon/diskv"
)

// Store is a cacheproxy.Store backed by a directory of flat files.
type Store struct {
	d *diskv.Diskv
}

// New returns a Store that will store files under basePath.
func New(basePath string) *Store {
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 100 * 1024 * 1024,
		}),
	}
}

// NewWithDiskv wraps an already-configured Diskv instance.
func NewWithDiskv(d *diskv.Diskv) *Store {
	return &Store{d: d}
}

// Get implements cacheproxy.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := s.d.Read(keyToFilename(key))
	if err != nil {
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.d.WriteStream(keyToFilename(key), bytes.NewReader(value), true); err != nil {
		return fmt.Errorf("diskv: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	_ = s.d.Erase(keyToFilename(key))
	return nil
}

// keyToFilename hashes the cache key so arbitrary URLs (which may contain
// path separators or exceed filesystem name limits) become safe filenames.
func keyToFilename(key string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, key)
	return hex.EncodeToString(h.Sum(nil))
}
