// Package leveldb provides an embedded, on-disk cacheproxy.Store backed by
// github.com/syndtr/goleveldb, surviving process restarts unlike the
// in-memory Cache.
package leveldb

import (
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// Store is a cacheproxy.Store backed by a LevelDB database file.
type Store struct {
	db *leveldb.DB
}

// New opens (creating if absent) a LevelDB database at path.
func New(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open LevelDB handle.
func NewWithDB(db *leveldb.DB) *Store {
	return &Store{db: db}
}

// Get implements cacheproxy.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("leveldb: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("leveldb: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb: delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}
