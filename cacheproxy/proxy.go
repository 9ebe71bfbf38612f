// Package cacheproxy implements the forward HTTP/1.1 caching proxy core:
// wire I/O, message parsing, the freshness/revalidation cache, the
// per-connection request handler, and the connection acceptor that ties
// them together.
package cacheproxy

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loomwright/httpproxy/metrics"
)

const defaultListenAddr = ":12345"
const defaultIdleTimeout = 30 * time.Second

// Proxy is the connection acceptor: it binds a listening socket, accepts
// in a loop, assigns each accepted connection a monotonically increasing
// request id, and dispatches an independent Handler per connection. It
// never blocks on a Handler, and accept errors are logged and skipped
// rather than fatal.
type Proxy struct {
	listenAddr  string
	idleTimeout time.Duration
	cache       *Cache
	metrics     metrics.Collector
	resilience  *Resilience
	dial        DialFunc

	nextID   atomic.Int64
	listener net.Listener

	wg       sync.WaitGroup
	mu       sync.Mutex
	draining bool
}

// NewProxy builds a Proxy applying opts in order; the first option error
// aborts construction.
func NewProxy(opts ...ProxyOption) (*Proxy, error) {
	cache, err := NewCache()
	if err != nil {
		return nil, err
	}
	p := &Proxy{
		listenAddr:  defaultListenAddr,
		idleTimeout: defaultIdleTimeout,
		cache:       cache,
		metrics:     metrics.DefaultCollector,
		dial:        defaultDial,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Cache exposes the Proxy's Cache, e.g. for metrics inspection or tests.
func (p *Proxy) Cache() *Cache { return p.cache }

// ListenAndServe binds the configured address and accepts connections until
// ctx is cancelled. On cancellation it stops accepting and waits, with no
// timeout of its own, for in-flight handlers and pending Store writes to
// finish before returning.
func (p *Proxy) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return fmt.Errorf("cacheproxy: listen on %s: %w", p.listenAddr, err)
	}
	p.mu.Lock()
	p.listener = ln
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.draining = true
		p.mu.Unlock()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			p.mu.Lock()
			draining := p.draining
			p.mu.Unlock()
			if draining {
				break
			}
			GetLogger().Warn("accept error", "error", err)
			continue
		}
		id := p.nextID.Add(1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			h := &Handler{
				id:          id,
				cache:       p.cache,
				dial:        p.dial,
				idleTimeout: p.idleTimeout,
				metrics:     p.metrics,
				resilience:  p.resilience,
			}
			h.Serve(conn)
		}()
	}

	p.wg.Wait()
	p.cache.Wait()
	return nil
}

// Addr returns the bound listener address; only valid after ListenAndServe
// has started listening. Used by tests that bind to ":0" and need the
// actual assigned port.
func (p *Proxy) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}
