// Package prometheus provides a Prometheus metrics.Collector implementation
// for the proxy. This package is optional and only imported when Prometheus
// metrics are needed.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/loomwright/httpproxy/metrics"
)

// Collector implements metrics.Collector for Prometheus
type Collector struct {
	cacheRequests   *prometheus.CounterVec
	cacheOpDuration *prometheus.HistogramVec
	cacheEntries    *prometheus.GaugeVec
	forwardRequests *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec
	tunnelDuration  *prometheus.HistogramVec
	tunnelBytes     *prometheus.CounterVec
	errors          *prometheus.CounterVec
}

// CollectorConfig provides configuration options for the Prometheus collector
type CollectorConfig struct {
	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// Namespace for metrics (default: "httpproxy")
	Namespace string

	// Subsystem for metrics (optional)
	Subsystem string

	// ConstLabels are labels added to all metrics
	ConstLabels prometheus.Labels
}

// NewCollector creates a new Prometheus collector with default registry and configuration
func NewCollector() *Collector {
	return NewCollectorWithConfig(CollectorConfig{})
}

// NewCollectorWithRegistry creates a new Prometheus collector with a custom registry
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	return NewCollectorWithConfig(CollectorConfig{
		Registry: reg,
	})
}

// NewCollectorWithConfig creates a new Prometheus collector with custom configuration
func NewCollectorWithConfig(config CollectorConfig) *Collector {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "httpproxy"
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		cacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_operations_total",
				Help:        "Total number of cache/store operations",
				ConstLabels: config.ConstLabels,
			},
			[]string{"operation", "backend", "result"},
		),
		cacheOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_operation_duration_seconds",
				Help:        "Duration of cache/store operations in seconds",
				Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
				ConstLabels: config.ConstLabels,
			},
			[]string{"operation", "backend"},
		),
		cacheEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "cache_entries_total",
				Help:        "Current number of entries held",
				ConstLabels: config.ConstLabels,
			},
			[]string{"backend"},
		),
		forwardRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "forward_requests_total",
				Help:        "Total number of forwarded GET/POST requests",
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "cache_status", "status_code"},
		),
		forwardDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "forward_duration_seconds",
				Help:        "Duration of forwarded requests in seconds",
				Buckets:     []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30},
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "cache_status"},
		),
		tunnelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "tunnel_duration_seconds",
				Help:        "Duration of CONNECT tunnels in seconds",
				Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
				ConstLabels: config.ConstLabels,
			},
			[]string{},
		),
		tunnelBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "tunnel_bytes_total",
				Help:        "Total bytes relayed through CONNECT tunnels",
				ConstLabels: config.ConstLabels,
			},
			[]string{"direction"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "errors_total",
				Help:        "Total number of closed-kind errors reaching the handler boundary",
				ConstLabels: config.ConstLabels,
			},
			[]string{"kind"},
		),
	}
}

// RecordCacheOperation records a cache/store operation
func (c *Collector) RecordCacheOperation(operation, backend, result string, duration time.Duration) {
	c.cacheRequests.WithLabelValues(operation, backend, result).Inc()
	c.cacheOpDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordCacheEntries records the current number of entries held
func (c *Collector) RecordCacheEntries(backend string, count int64) {
	c.cacheEntries.WithLabelValues(backend).Set(float64(count))
}

// RecordForward records a forwarded GET/POST request
func (c *Collector) RecordForward(method, cacheStatus string, statusCode int, duration time.Duration) {
	c.forwardRequests.WithLabelValues(method, cacheStatus, statusCodeLabel(statusCode)).Inc()
	c.forwardDuration.WithLabelValues(method, cacheStatus).Observe(duration.Seconds())
}

// RecordTunnel records a completed CONNECT tunnel
func (c *Collector) RecordTunnel(duration time.Duration, bytesClientToOrigin, bytesOriginToClient int64) {
	c.tunnelDuration.WithLabelValues().Observe(duration.Seconds())
	c.tunnelBytes.WithLabelValues("client_to_origin").Add(float64(bytesClientToOrigin))
	c.tunnelBytes.WithLabelValues("origin_to_client").Add(float64(bytesOriginToClient))
}

// RecordError records a closed-kind error
func (c *Collector) RecordError(kind string) {
	c.errors.WithLabelValues(kind).Inc()
}

func statusCodeLabel(code int) string {
	if code <= 0 {
		return "none"
	}
	return strconv.Itoa(code)
}

// Verify interface implementation at compile time
var _ metrics.Collector = (*Collector)(nil)
