// Package hazelcast provides a distributed IMap-backed cacheproxy.Store,
// for multi-instance proxy deployments that want to share warm entries
// across replicas.
package hazelcast

import (
	"context"
	"fmt"

	"github.com/hazelcast/hazelcast-go-client"
)

// Store is a cacheproxy.Store backed by a Hazelcast distributed map.
type Store struct {
	client *hazelcast.Client
	m      *hazelcast.Map
}

func storeKey(key string) string {
	return "httpproxy:" + key
}

// New connects to a Hazelcast cluster using the given config and returns a
// Store backed by the named map.
func New(ctx context.Context, cfg hazelcast.Config, mapName string) (*Store, error) {
	client, err := hazelcast.StartNewClientWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("hazelcast: connect: %w", err)
	}
	m, err := client.GetMap(ctx, mapName)
	if err != nil {
		_ = client.Shutdown(ctx)
		return nil, fmt.Errorf("hazelcast: get map %q: %w", mapName, err)
	}
	return &Store{client: client, m: m}, nil
}

// NewWithMap wraps an already-obtained Hazelcast map.
func NewWithMap(m *hazelcast.Map) *Store {
	return &Store{m: m}
}

// Get implements cacheproxy.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.m.Get(ctx, storeKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("hazelcast: get %q: %w", key, err)
	}
	if val == nil {
		return nil, false, nil
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.m.Set(ctx, storeKey(key), value); err != nil {
		return fmt.Errorf("hazelcast: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.m.Remove(ctx, storeKey(key)); err != nil {
		return fmt.Errorf("hazelcast: delete %q: %w", key, err)
	}
	return nil
}

// Close shuts down the underlying client, if this Store owns one.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Shutdown(ctx)
}
