package cacheproxy

import (
	"fmt"
	"time"

	"github.com/loomwright/httpproxy/metrics"
)

// CacheOption configures a Cache at construction time: a function that
// mutates the value under construction and can fail fast on an invalid
// setting.
type CacheOption func(*Cache) error

// WithStore attaches an optional secondary persistence layer. A nil store
// is rejected since it would defeat the purpose of calling WithStore at all;
// callers who want no Store simply omit the option.
func WithStore(store Store) CacheOption {
	return func(c *Cache) error {
		if store == nil {
			return fmt.Errorf("cacheproxy: WithStore requires a non-nil Store")
		}
		c.store = store
		return nil
	}
}

// WithStoreOnMissLookup enables consulting the Store on a MISS classification
// before reporting MISS to the Handler, populating the in-memory entry on a
// Store hit. Disabled by default so a cold Cache never pays a Store round
// trip it wasn't asked for.
func WithStoreOnMissLookup(enabled bool) CacheOption {
	return func(c *Cache) error {
		c.onMiss = enabled
		return nil
	}
}

// WithStoreConcurrency bounds how many asynchronous Store writes may be
// in flight at once; additional writes are dropped rather than queued so a
// saturated Store cannot build up unbounded goroutines.
func WithStoreConcurrency(n int) CacheOption {
	return func(c *Cache) error {
		if n <= 0 {
			return fmt.Errorf("cacheproxy: WithStoreConcurrency requires n > 0, got %d", n)
		}
		c.storeSem = make(chan struct{}, n)
		return nil
	}
}

// WithMetrics attaches a metrics.Collector. The default is metrics.DefaultCollector
// (a no-op), so metrics remain fully optional.
func WithMetrics(collector metrics.Collector) CacheOption {
	return func(c *Cache) error {
		if collector == nil {
			return fmt.Errorf("cacheproxy: WithMetrics requires a non-nil Collector")
		}
		c.metrics = collector
		return nil
	}
}

// WithClock overrides the Cache's notion of time. Exposed for tests that
// need freshness windows to advance without sleeping in real time.
func WithClock(c2 clock) CacheOption {
	return func(c *Cache) error {
		if c2 == nil {
			return fmt.Errorf("cacheproxy: WithClock requires a non-nil clock")
		}
		c.clock = c2
		return nil
	}
}

// ProxyOption configures a Proxy at construction time.
type ProxyOption func(*Proxy) error

// WithListenAddr sets the TCP address the Acceptor binds. Default ":12345",
// matching the external interface's default port.
func WithListenAddr(addr string) ProxyOption {
	return func(p *Proxy) error {
		if addr == "" {
			return fmt.Errorf("cacheproxy: WithListenAddr requires a non-empty address")
		}
		p.listenAddr = addr
		return nil
	}
}

// WithIdleTimeout sets the per-read/write socket timeout applied to every
// client and origin connection. Default 30s.
func WithIdleTimeout(d time.Duration) ProxyOption {
	return func(p *Proxy) error {
		if d <= 0 {
			return fmt.Errorf("cacheproxy: WithIdleTimeout requires d > 0, got %v", d)
		}
		p.idleTimeout = d
		return nil
	}
}

// WithCache replaces the default empty in-memory Cache with a pre-built one,
// letting callers wire a Store, metrics, or clock before the Proxy starts.
func WithCache(c *Cache) ProxyOption {
	return func(p *Proxy) error {
		if c == nil {
			return fmt.Errorf("cacheproxy: WithCache requires a non-nil Cache")
		}
		p.cache = c
		return nil
	}
}

// WithProxyMetrics attaches a metrics.Collector to the Proxy's Handler path
// (forward latency, tunnel duration, errors), independent of the Cache's own
// metrics collector.
func WithProxyMetrics(collector metrics.Collector) ProxyOption {
	return func(p *Proxy) error {
		if collector == nil {
			return fmt.Errorf("cacheproxy: WithProxyMetrics requires a non-nil Collector")
		}
		p.metrics = collector
		return nil
	}
}

// WithResilience attaches a Resilience policy wrapping origin dials/forwards
// on the GET/POST path. The CONNECT relay never goes through this policy.
func WithResilience(r *Resilience) ProxyOption {
	return func(p *Proxy) error {
		if r == nil {
			return fmt.Errorf("cacheproxy: WithResilience requires a non-nil Resilience")
		}
		p.resilience = r
		return nil
	}
}

// WithDialer overrides how the Handler opens origin connections. Tests use
// this to substitute an in-memory dialer backed by net.Pipe.
func WithDialer(dial DialFunc) ProxyOption {
	return func(p *Proxy) error {
		if dial == nil {
			return fmt.Errorf("cacheproxy: WithDialer requires a non-nil DialFunc")
		}
		p.dial = dial
		return nil
	}
}
