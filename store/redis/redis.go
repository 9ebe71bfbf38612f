// Package redis provides a Redis-backed cacheproxy.Store via the
// go-redis/v9 client.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config holds the configuration for creating a Redis-backed Store.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379"). Required.
	Addr string

	// Password is the Redis password for authentication. Optional.
	Password string

	// DB is the Redis database number to use. Optional, defaults to 0.
	DB int

	// TTL is applied to every Set as the key's expiration (SET with an
	// expiry option). Zero means no expiration, and
	// entries rely entirely on the in-memory Cache's freshness window plus
	// explicit Delete calls for cleanup.
	TTL time.Duration

	// DialTimeout, ReadTimeout, WriteTimeout bound individual operations.
	// Optional; go-redis' own defaults apply when zero.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store is a cacheproxy.Store backed by a Redis server.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

// keyPrefix namespaces keys to avoid collision with other data in the same
// Redis keyspace.
const keyPrefix = "httpproxy:"

func storeKey(key string) string {
	return keyPrefix + key
}

// New establishes a connection to Redis and returns a ready Store. The
// caller should Close it when done.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: Addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect failed: %w", err)
	}
	return &Store{client: client, ttl: cfg.TTL}, nil
}

// Get implements cacheproxy.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, storeKey(key)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get %q: %w", key, err)
	}
	return val, true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, storeKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, storeKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying client's connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
