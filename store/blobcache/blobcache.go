// Package blobcache provides a cloud-object-storage-backed cacheproxy.Store
// using Go Cloud Development Kit (CDK) blob storage, so a proxy fleet can
// share a persistence tier across S3, GCS, Azure Blob, or a local directory
// without a backend-specific client.
//
// Example usage with S3:
//
//	import (
//	    _ "gocloud.dev/blob/s3blob"
//	    "github.com/loomwright/httpproxy/store/blobcache"
//	)
//
//	store, err := blobcache.New(ctx, blobcache.Config{
//	    BucketURL: "s3://my-bucket?region=us-west-2",
//	    KeyPrefix: "httpproxy/",
//	})
package blobcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Config holds the configuration for the blob-backed Store.
type Config struct {
	// BucketURL is the Go Cloud blob URL (e.g., "s3://bucket?region=us-west-2").
	BucketURL string

	// KeyPrefix is prepended to every stored key. Optional, defaults to "cache/".
	KeyPrefix string

	// Timeout bounds a blob operation when the caller's context carries no deadline.
	Timeout time.Duration

	// Bucket is an optional pre-opened bucket; if set, BucketURL is ignored.
	Bucket *blob.Bucket
}

func defaultConfig() Config {
	return Config{
		KeyPrefix: "cache/",
		Timeout:   30 * time.Second,
	}
}

// Store is a cacheproxy.Store backed by a Go Cloud blob bucket.
type Store struct {
	bucket     *blob.Bucket
	keyPrefix  string
	timeout    time.Duration
	ownsBucket bool
}

// New opens the bucket named by config.BucketURL (or adopts config.Bucket)
// and returns a ready Store. Call Close when done.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.BucketURL == "" && config.Bucket == nil {
		return nil, fmt.Errorf("blobcache: either BucketURL or Bucket must be provided")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultConfig().KeyPrefix
	}
	if config.Timeout == 0 {
		config.Timeout = defaultConfig().Timeout
	}

	var bucket *blob.Bucket
	var ownsBucket bool
	if config.Bucket != nil {
		bucket = config.Bucket
	} else {
		var err error
		bucket, err = blob.OpenBucket(ctx, config.BucketURL)
		if err != nil {
			return nil, fmt.Errorf("blobcache: open bucket: %w", err)
		}
		ownsBucket = true
	}

	return &Store{
		bucket:     bucket,
		keyPrefix:  config.KeyPrefix,
		timeout:    config.Timeout,
		ownsBucket: ownsBucket,
	}, nil
}

// NewWithBucket wraps an already-opened bucket. The caller retains ownership
// and is responsible for closing it.
func NewWithBucket(bucket *blob.Bucket, keyPrefix string, timeout time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = defaultConfig().KeyPrefix
	}
	if timeout == 0 {
		timeout = defaultConfig().Timeout
	}
	return &Store{bucket: bucket, keyPrefix: keyPrefix, timeout: timeout}
}

// storeKey hashes the cache key so arbitrary URLs become safe, bounded-length
// blob names regardless of the backing provider's naming rules.
func (s *Store) storeKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return s.keyPrefix + hex.EncodeToString(hash[:])
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

	reader, err := s.bucket.NewReader(ctx, s.storeKey(key), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("blobcache: get %q: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("blobcache: read %q: %w", key, err)
	}
	return data, true, nil
}

// Set implements cacheproxy.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	writer, err := s.bucket.NewWriter(ctx, s.storeKey(key), nil)
	if err != nil {
		return fmt.Errorf("blobcache: set %q: create writer: %w", key, err)
	}
	_, writeErr := writer.Write(value)
	closeErr := writer.Close()
	if writeErr != nil {
		return fmt.Errorf("blobcache: set %q: write: %w", key, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("blobcache: set %q: close: %w", key, closeErr)
	}
	return nil
}

// Delete implements cacheproxy.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.bucket.Delete(ctx, s.storeKey(key)); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("blobcache: delete %q: %w", key, err)
	}
	return nil
}

// Close closes the bucket, if this Store opened it.
func (s *Store) Close() error {
	if !s.ownsBucket {
		return nil
	}
	if err := s.bucket.Close(); err != nil {
		return fmt.Errorf("blobcache: close: %w", err)
	}
	return nil
}
