// Package compresscache provides a cacheproxy.Store wrapper that
// automatically compresses stored entries to reduce persistence-tier
// storage and network bandwidth usage. Supports gzip, brotli, and snappy.
package compresscache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/loomwright/httpproxy/cacheproxy"
)

// Algorithm represents the compression algorithm to use.
type Algorithm int

const (
	// Gzip uses gzip compression (good balance of compression and speed).
	Gzip Algorithm = iota
	// Brotli uses brotli compression (best compression ratio, slower).
	Brotli
	// Snappy uses snappy compression (fastest, lower compression ratio).
	Snappy
)

// String returns the string representation of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Snappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// Stats holds compression statistics.
type Stats struct {
	CompressedBytes   int64
	UncompressedBytes int64
	CompressedCount   int64
	UncompressedCount int64
	CompressionRatio  float64
	SavingsPercent    float64
}

type compressFunc func([]byte) ([]byte, error)
type decompressFunc func([]byte) ([]byte, error)

// baseCompressCache provides the common marker-byte framing shared by
// GzipCache, BrotliCache, and SnappyCache.
type baseCompressCache struct {
	store     cacheproxy.Store
	algorithm Algorithm

	compressedBytes   atomic.Int64
	uncompressedBytes atomic.Int64
	compressedCount   atomic.Int64
	uncompressedCount atomic.Int64
}

func newBaseCompressCache(store cacheproxy.Store, algorithm Algorithm) *baseCompressCache {
	return &baseCompressCache{store: store, algorithm: algorithm}
}

// get retrieves and decompresses a value from the store. The first byte of
// the stored payload is a marker: 0 means uncompressed, otherwise
// Algorithm(marker-1) names the algorithm the payload was compressed with,
// allowing any *Cache to read entries written by any other.
func (c *baseCompressCache) get(ctx context.Context, key string, decompressFn decompressFunc) ([]byte, bool, error) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if len(data) < 1 {
		return data, true, nil
	}

	marker := data[0]
	if marker == 0 {
		return data[1:], true, nil
	}

	storedAlgo := Algorithm(marker - 1)
	decompressed, err := c.decompressWithAlgorithm(data[1:], storedAlgo, decompressFn)
	if err != nil {
		cacheproxy.GetLogger().Warn("compresscache: decompression failed",
			"key", key, "algorithm", storedAlgo.String(), "error", err)
		return nil, false, nil
	}
	return decompressed, true, nil
}

func (c *baseCompressCache) decompressWithAlgorithm(data []byte, algorithm Algorithm, decompressFn decompressFunc) ([]byte, error) {
	if algorithm == c.algorithm {
		return decompressFn(data)
	}
	return c.decompressAny(data, algorithm)
}

// decompressAny decompresses data written by a different *Cache than this
// one, so mixed-algorithm deployments (or a rolled-over algorithm change)
// can still read older entries.
func (c *baseCompressCache) decompressAny(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case Gzip:
		return (&GzipCache{baseCompressCache: c}).decompress(data)
	case Brotli:
		return (&BrotliCache{baseCompressCache: c}).decompress(data)
	case Snappy:
		return (&SnappyCache{baseCompressCache: c}).decompress(data)
	default:
		return nil, fmt.Errorf("compresscache: unsupported decompression algorithm: %v", algorithm)
	}
}

// set compresses and stores a value. A compression failure falls back to
// storing the value uncompressed rather than losing the entry.
func (c *baseCompressCache) set(ctx context.Context, key string, value []byte, compressFn compressFunc) error {
	compressed, err := compressFn(value)
	if err != nil {
		cacheproxy.GetLogger().Warn("compresscache: compression failed, storing uncompressed",
			"key", key, "algorithm", c.algorithm.String(), "error", err)
		data := make([]byte, len(value)+1)
		data[0] = 0
		copy(data[1:], value)
		c.uncompressedCount.Add(1)
		c.uncompressedBytes.Add(int64(len(value)))
		return c.store.Set(ctx, key, data)
	}

	data := make([]byte, len(compressed)+1)
	data[0] = byte(c.algorithm + 1)
	copy(data[1:], compressed)

	if err := c.store.Set(ctx, key, data); err != nil {
		return err
	}
	c.compressedCount.Add(1)
	c.compressedBytes.Add(int64(len(compressed)))
	c.uncompressedBytes.Add(int64(len(value)))
	return nil
}

func (c *baseCompressCache) delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

func (c *baseCompressCache) stats() Stats {
	compressed := c.compressedBytes.Load()
	uncompressed := c.uncompressedBytes.Load()

	var ratio, savings float64
	if uncompressed > 0 {
		ratio = float64(compressed) / float64(uncompressed)
		savings = (1.0 - ratio) * 100
	}

	return Stats{
		CompressedBytes:   compressed,
		UncompressedBytes: uncompressed,
		CompressedCount:   c.compressedCount.Load(),
		UncompressedCount: c.uncompressedCount.Load(),
		CompressionRatio:  ratio,
		SavingsPercent:    savings,
	}
}
