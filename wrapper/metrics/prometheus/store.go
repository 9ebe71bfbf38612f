// Package prometheus instruments a cacheproxy.Store with per-operation
// metrics, intended to be paired with the Prometheus metrics.Collector in
// metrics/prometheus so Store latency and hit/miss outcomes show up next to
// the proxy's own forward/tunnel metrics.
package prometheus

import (
	"context"
	"time"

	"github.com/loomwright/httpproxy/cacheproxy"
	"github.com/loomwright/httpproxy/metrics"
)

// Metric result constants.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultSuccess = "success"
	resultError   = "error"
)

// InstrumentedStore wraps a cacheproxy.Store and records every Get/Set/Delete
// against a metrics.Collector.
type InstrumentedStore struct {
	underlying cacheproxy.Store
	collector  metrics.Collector
	backend    string // backend name: "redis", "leveldb", "freecache", etc.
}

// NewInstrumentedStore creates a Store decorator that records metrics for
// every operation before delegating to the wrapped backend.
//
// Parameters:
//   - store: the underlying Store implementation to wrap
//   - backend: the name of the backend (e.g., "diskv", "redis", "leveldb")
//   - collector: the metrics collector (if nil, uses metrics.DefaultCollector)
//
// Example:
//
//	import promcollector "github.com/loomwright/httpproxy/metrics/prometheus"
//
//	collector := promcollector.NewCollector()
//	store := prometheus.NewInstrumentedStore(
//	    diskv.New("/tmp/cache"),
//	    "diskv",
//	    collector,
//	)
func NewInstrumentedStore(store cacheproxy.Store, backend string, collector metrics.Collector) *InstrumentedStore {
	if collector == nil {
		collector = metrics.DefaultCollector
	}

	return &InstrumentedStore{
		underlying: store,
		collector:  collector,
		backend:    backend,
	}
}

// Get retrieves a value from the wrapped Store with metrics recording.
func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.underlying.Get(ctx, key)
	duration := time.Since(start)

	result := resultMiss
	if err != nil {
		result = resultError
	} else if ok {
		result = resultHit
	}

	s.collector.RecordCacheOperation("get", s.backend, result, duration)

	return value, ok, err
}

// Set stores a value in the wrapped Store with metrics recording.
func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.underlying.Set(ctx, key, value)
	duration := time.Since(start)

	result := resultSuccess
	if err != nil {
		result = resultError
	}

	s.collector.RecordCacheOperation("set", s.backend, result, duration)

	return err
}

// Delete removes a value from the wrapped Store with metrics recording.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.underlying.Delete(ctx, key)
	duration := time.Since(start)

	result := resultSuccess
	if err != nil {
		result = resultError
	}

	s.collector.RecordCacheOperation("delete", s.backend, result, duration)

	return err
}

// Verify interface implementation at compile time
var _ cacheproxy.Store = (*InstrumentedStore)(nil)
