// Package natskv provides a messaging-system-backed cacheproxy.Store using
// NATS JetStream's Key/Value store, for proxy fleets that already run
// alongside a NATS cluster.
package natskv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Config holds the configuration for creating a NATS K/V-backed Store.
type Config struct {
	// NATSUrl is the URL of the NATS server. Empty defaults to nats.DefaultURL.
	NATSUrl string
	// Bucket is the K/V bucket name. Required.
	Bucket string
	// Description is an optional description for the bucket.
	Description string
	// TTL is the time-to-live for entries; zero means no expiration.
	TTL time.Duration
}

// storeKeyPrefix namespaces keys within the bucket.
const storeKeyPrefix = "httpproxy."

// storeKey hashes the cache key: NATS K/V keys are restricted to
// alphanumerics plus "-/_=.", which a canonicalized request line violates.
func storeKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return storeKeyPrefix + hex.EncodeToString(hash[:])
}

// Store is a cacheproxy.Store backed by a NATS JetStream K/V bucket.
type Store struct {
	kv jetstream.KeyValue
	nc *nats.Conn
}

// New connects to NATS, creates/updates the configured K/V bucket, and
// returns a ready Store. The caller should Close it when done.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("natskv: Bucket is required")
	}
	url := cfg.NATSUrl
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("natskv: connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskv: jetstream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: cfg.Description,
		TTL:         cfg.TTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskv: create/update bucket: %w", err)
	}
	return &Store{kv: kv, nc: nc}, nil
}

// NewWithKeyValue wraps an already-obtained JetStream KeyValue store. Close
// on the returned Store is then a no-op.
func NewWithKeyValue(kv jetstream.KeyValue) *Store {
	return &Store{kv: kv}
}

// Get implements cacheproxy.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, storeKey(key))
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("natskv: get %q: %w", key, err)
	}
	return entry.Value(), true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, storeKey(key), value); err != nil {
		return fmt.Errorf("natskv: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, storeKey(key)); err != nil && err != jetstream.ErrKeyNotFound {
		return fmt.Errorf("natskv: delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying NATS connection, if this Store owns one.
func (s *Store) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
