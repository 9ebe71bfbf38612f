// Package metrics provides an interface for collecting proxy metrics.
// This package defines a generic interface that can be implemented by various
// metrics systems (Prometheus, OpenTelemetry, Datadog, etc.) without adding
// dependencies to the cacheproxy core.
package metrics

import (
	"time"
)

// Collector defines the interface for metrics collection.
// Implementations of this interface can collect metrics for various
// monitoring systems without requiring changes to the cacheproxy core.
type Collector interface {
	// RecordCacheOperation records a cache or store operation
	// Parameters:
	//   - operation: "classify", "get", "set", or "delete"
	//   - backend: "memory" for the in-memory Cache, "store" for the Cache's
	//     own Store writes, or the backend name an InstrumentedStore was given
	//   - result: "hit", "miss", "fresh", "must_revalidate", "success", or "error"
	//   - duration: operation duration
	RecordCacheOperation(operation, backend, result string, duration time.Duration)

	// RecordCacheEntries records the current number of entries held
	// Parameters:
	//   - backend: "memory" or the configured Store's name
	//   - count: number of entries
	RecordCacheEntries(backend string, count int64)

	// RecordForward records a forwarded GET/POST request to an origin
	// Parameters:
	//   - method: GET or POST
	//   - cacheStatus: "hit", "miss", "revalidated", or "bypass"
	//   - statusCode: HTTP status code returned by the origin
	//   - duration: forward duration
	RecordForward(method, cacheStatus string, statusCode int, duration time.Duration)

	// RecordTunnel records a completed CONNECT tunnel's lifetime and byte
	// counts in each direction
	RecordTunnel(duration time.Duration, bytesClientToOrigin, bytesOriginToClient int64)

	// RecordError records a closed-kind error reaching the Handler boundary
	// Parameters:
	//   - kind: one of the closed proxyerr.Kind strings
	RecordError(kind string)
}

// NoOpCollector implements Collector with no-op operations.
// This is used as the default collector when metrics are not enabled,
// ensuring zero overhead for users who don't need metrics.
type NoOpCollector struct{}

// RecordCacheOperation does nothing (no-op implementation)
func (n *NoOpCollector) RecordCacheOperation(operation, backend, result string, duration time.Duration) {
}

// RecordCacheEntries does nothing (no-op implementation)
func (n *NoOpCollector) RecordCacheEntries(backend string, count int64) {}

// RecordForward does nothing (no-op implementation)
func (n *NoOpCollector) RecordForward(method, cacheStatus string, statusCode int, duration time.Duration) {
}

// RecordTunnel does nothing (no-op implementation)
func (n *NoOpCollector) RecordTunnel(duration time.Duration, bytesClientToOrigin, bytesOriginToClient int64) {
}

// RecordError does nothing (no-op implementation)
func (n *NoOpCollector) RecordError(kind string) {}

// DefaultCollector is the default no-op collector used when metrics are not enabled
var DefaultCollector Collector = &NoOpCollector{}

// Verify that NoOpCollector implements Collector interface
var _ Collector = (*NoOpCollector)(nil)
