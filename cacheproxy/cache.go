package cacheproxy

import (
	"context"
	"sync"
	"time"

	"github.com/loomwright/httpproxy/internal/message"
	"github.com/loomwright/httpproxy/metrics"
)

// Classification is the result of consulting the Cache for a GET request.
type Classification int

const (
	Miss Classification = iota
	Fresh
	MustRevalidate
)

func (c Classification) String() string {
	switch c {
	case Miss:
		return "MISS"
	case Fresh:
		return "FRESH"
	case MustRevalidate:
		return "MUST_REVALIDATE"
	default:
		return "UNKNOWN"
	}
}

// Entry is a single cached response plus the metadata needed to judge its
// freshness without recomputing anything from the wire bytes.
type Entry struct {
	Key               string
	Response          *message.Response
	InsertedAt        time.Time
	FreshnessLifetime time.Duration
}

// Cache is the sole shared mutable resource in the proxy. Every one of its
// public operations completes in O(1) plus small arithmetic, guarded by a
// single mutex; no network I/O ever happens while the mutex is held — a
// configured Store is written to strictly after put() releases it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry

	clock   clock
	store   Store
	onMiss  bool // WithStoreOnMissLookup
	metrics metrics.Collector

	storeWg  sync.WaitGroup
	storeSem chan struct{} // bounds concurrent async Store writes
}

// NewCache builds an empty in-memory Cache. A nil Store leaves the Cache
// behaving exactly as the unextended in-memory design. Options are applied
// in order and fail fast: the first error aborts construction.
func NewCache(opts ...CacheOption) (*Cache, error) {
	c := &Cache{
		entries:  make(map[string]*Entry),
		clock:    defaultClock,
		metrics:  metrics.DefaultCollector,
		storeSem: make(chan struct{}, 8),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Classify implements the freshness decision procedure: no entry → MISS;
// entry with Cache-Control: no-cache → MUST_REVALIDATE; age < freshness
// lifetime → FRESH; otherwise MUST_REVALIDATE. Only GET requests are
// classifiable; callers must not call Classify for POST/CONNECT.
func (c *Cache) Classify(ctx context.Context, key string) Classification {
	start := time.Now()
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if !ok && c.store != nil && c.onMiss {
		if loaded, found := c.loadFromStore(ctx, key); found {
			entry = loaded
			ok = true
		}
	}

	if !ok {
		c.metrics.RecordCacheOperation("classify", "memory", "miss", time.Since(start))
		return Miss
	}

	if entry.Response.CacheControl.Has(message.CacheControlNoCache) {
		c.metrics.RecordCacheOperation("classify", "memory", "must_revalidate", time.Since(start))
		return MustRevalidate
	}

	age := c.clock.since(entry.InsertedAt)
	if age < entry.FreshnessLifetime {
		c.metrics.RecordCacheOperation("classify", "memory", "fresh", time.Since(start))
		return Fresh
	}
	c.metrics.RecordCacheOperation("classify", "memory", "must_revalidate", time.Since(start))
	return MustRevalidate
}

// Get returns the stored response for key. The caller must only call this
// after Classify reported something other than Miss.
func (c *Cache) Get(key string) (*message.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Response, true
}

// Put inserts resp under key if IsCacheable(resp) holds; otherwise it is a
// no-op. On success the Store (if any) is written to asynchronously, after
// the mutex is released.
func (c *Cache) Put(ctx context.Context, key string, resp *message.Response) {
	if !IsCacheable(resp) {
		return
	}

	lifetime := FreshnessLifetime(resp)
	entry := &Entry{
		Key:               key,
		Response:          resp,
		InsertedAt:        c.clock.now(),
		FreshnessLifetime: lifetime,
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	c.metrics.RecordCacheEntries("memory", int64(c.len()))

	if c.store != nil {
		c.asyncStoreWrite(entry)
	}
}

// TouchInsertedAt resets an entry's freshness window after a successful
// 304 revalidation.
func (c *Cache) TouchInsertedAt(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		entry.InsertedAt = c.clock.now()
	}
}

// Replace overwrites (or inserts) the entry for key with a freshly forwarded
// cacheable response, used after a 200 OK revalidation outcome.
func (c *Cache) Replace(ctx context.Context, key string, resp *message.Response) {
	c.Put(ctx, key, resp)
}

func (c *Cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) loadFromStore(ctx context.Context, key string) (*Entry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	entry, err := decodeEntry(key, raw)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return entry, true
}

func (c *Cache) asyncStoreWrite(entry *Entry) {
	raw, err := encodeEntry(entry)
	if err != nil {
		return
	}
	select {
	case c.storeSem <- struct{}{}:
	default:
		// Store is saturated; drop this write rather than blocking the
		// request path or letting goroutines pile up unbounded.
		return
	}
	c.storeWg.Add(1)
	go func() {
		defer c.storeWg.Done()
		defer func() { <-c.storeSem }()
		start := time.Now()
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := c.store.Set(writeCtx, entry.Key, raw)
		result := "success"
		if err != nil {
			result = "error"
		}
		c.metrics.RecordCacheOperation("set", "store", result, time.Since(start))
	}()
}

// Wait blocks until every in-flight asynchronous Store write has completed.
// Used by graceful shutdown.
func (c *Cache) Wait() {
	c.storeWg.Wait()
}

// IsCacheable reports whether a response may enter the cache: status 200
// and no no-store/private directive. It sees only the response, so the GET
// restriction is applied by its callers, which store responses to GET
// requests only. no-cache is cacheable but forces revalidation via Classify.
func IsCacheable(resp *message.Response) bool {
	if resp.StatusCode != 200 {
		return false
	}
	if resp.CacheControl.Has(message.CacheControlNoStore) {
		return false
	}
	if resp.CacheControl.Has(message.CacheControlPrivate) {
		return false
	}
	return true
}

// FreshnessLifetime computes the freshness lifetime at insertion time: the
// response's max-age if set, else Expires − Date (non-negative) if both
// present, else zero.
func FreshnessLifetime(resp *message.Response) time.Duration {
	if d, ok := resp.CacheControl.MaxAge(); ok {
		return d
	}
	if resp.HasExpires && resp.HasDate {
		d := resp.Expires.Sub(resp.Date)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
