// Package postgresql provides a SQL-backed cacheproxy.Store using a single
// key/value table, via github.com/jackc/pgx/v5.
package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTableName is the table used when Config.TableName is empty.
const DefaultTableName = "httpproxy_store"

// DefaultKeyPrefix is prefixed onto every stored key when Config.KeyPrefix is empty.
const DefaultKeyPrefix = "cache:"

// Config holds the configuration for the PostgreSQL-backed Store.
type Config struct {
	// TableName holds cache entries. Optional, defaults to DefaultTableName.
	TableName string
	// KeyPrefix is prefixed onto every stored key. Optional, defaults to DefaultKeyPrefix.
	KeyPrefix string
	// Timeout bounds a single operation when the caller's context carries no deadline.
	Timeout time.Duration
}

func withDefaults(cfg *Config) *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return cfg
}

// Store is a cacheproxy.Store backed by a PostgreSQL table.
type Store struct {
	pool      *pgxpool.Pool
	tableName string
	keyPrefix string
	timeout   time.Duration
}

// New creates a connection pool for connString, creates the table if it
// doesn't exist, and returns a ready Store.
func New(ctx context.Context, connString string, cfg *Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgresql: connect: %w", err)
	}
	s := &Store{pool: pool, tableName: withDefaults(cfg).TableName, keyPrefix: withDefaults(cfg).KeyPrefix, timeout: withDefaults(cfg).Timeout}
	if err := s.createTable(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgresql: create table: %w", err)
	}
	return s, nil
}

// NewWithPool wraps an already-configured pool. The table is assumed to
// already exist.
func NewWithPool(pool *pgxpool.Pool, cfg *Config) (*Store, error) {
	if pool == nil {
		return nil, errors.New("postgresql: pool cannot be nil")
	}
	cfg = withDefaults(cfg)
	return &Store{pool: pool, tableName: cfg.TableName, keyPrefix: cfg.KeyPrefix, timeout: cfg.Timeout}, nil
}

func (s *Store) storeKey(key string) string {
	return s.keyPrefix + key
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Get implements cacheproxy.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var data []byte
	query := `SELECT data FROM ` + s.tableName + ` WHERE key = $1`
	err := s.pool.QueryRow(ctx, query, s.storeKey(key)).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("postgresql: get %q: %w", key, err)
	}
	return data, true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO ` + s.tableName + ` (key, data, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = $2, created_at = $3
	`
	if _, err := s.pool.Exec(ctx, query, s.storeKey(key), value, time.Now()); err != nil {
		return fmt.Errorf("postgresql: set %q: %w", key, err)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM ` + s.tableName + ` WHERE key = $1`
	if _, err := s.pool.Exec(ctx, query, s.storeKey(key)); err != nil {
		return fmt.Errorf("postgresql: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + s.tableName + ` (
			key TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`
	_, err := s.pool.Exec(ctx, query)
	return err
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
