// Package multicache tiers multiple Store backends behind a single
// cacheproxy.Store, so a proxy can pair a small fast tier (freecache) with
// larger, slower persistence tiers (redis, blobcache) without the Cache
// knowing more than one Store exists.
package multicache

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomwright/httpproxy/cacheproxy"
)

// Tier pairs a Store backend with the name used in log records and error
// messages when that backend misbehaves.
type Tier struct {
	Name  string
	Store cacheproxy.Store
}

// MultiCache fans the Store contract out over an ordered list of tiers,
// fastest first. Reads walk the tiers in order and promote hits back into
// the tiers that missed; writes and deletes touch every tier.
//
// A tier that errors is degraded, not fatal: reads log the failure and fall
// through to the next tier, and writes/deletes report a joined error only
// after every tier has been attempted, so one unreachable backend cannot
// black-hole the rest of the persistence mirror.
type MultiCache struct {
	tiers []Tier
}

// New builds a MultiCache over the given tiers, ordered fastest to slowest.
// Every tier needs a non-nil Store and a unique, non-empty name.
func New(tiers ...Tier) (*MultiCache, error) {
	if len(tiers) == 0 {
		return nil, errors.New("multicache: at least one tier is required")
	}
	names := make(map[string]bool, len(tiers))
	for i, tier := range tiers {
		if tier.Name == "" {
			return nil, fmt.Errorf("multicache: tier %d has no name", i)
		}
		if tier.Store == nil {
			return nil, fmt.Errorf("multicache: tier %q has a nil Store", tier.Name)
		}
		if names[tier.Name] {
			return nil, fmt.Errorf("multicache: duplicate tier name %q", tier.Name)
		}
		names[tier.Name] = true
	}
	return &MultiCache{tiers: tiers}, nil
}

// Get walks the tiers fastest-first. A hit in a slower tier is promoted
// into every faster tier before returning, so hot entries migrate toward
// the front on their own. A tier read error is logged and the next tier is
// consulted; Get reports a miss only once every tier has been tried.
func (m *MultiCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for i, tier := range m.tiers {
		value, ok, err := tier.Store.Get(ctx, key)
		if err != nil {
			cacheproxy.GetLogger().Warn("multicache: tier read failed, trying next",
				"tier", tier.Name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		m.promote(ctx, key, value, i)
		return value, true, nil
	}
	return nil, false, nil
}

// promote copies a hit found at tiers[found] into every faster tier.
// Promotion is best-effort: a tier that cannot absorb the entry is logged
// and left behind, and will simply miss again next time.
func (m *MultiCache) promote(ctx context.Context, key string, value []byte, found int) {
	for _, tier := range m.tiers[:found] {
		if err := tier.Store.Set(ctx, key, value); err != nil {
			cacheproxy.GetLogger().Warn("multicache: promotion failed",
				"tier", tier.Name, "error", err)
		}
	}
}

// Set writes through to every tier so each can apply its own eviction and
// durability policy. Failed tiers are collected into a joined error after
// all tiers have been attempted.
func (m *MultiCache) Set(ctx context.Context, key string, value []byte) error {
	var errs []error
	for _, tier := range m.tiers {
		if err := tier.Store.Set(ctx, key, value); err != nil {
			errs = append(errs, fmt.Errorf("multicache: set on tier %q: %w", tier.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes key from every tier, continuing past failures: stopping at
// the first error would leave a stale entry in a slower tier for the next
// Get to promote right back to the front.
func (m *MultiCache) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, tier := range m.tiers {
		if err := tier.Store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("multicache: delete on tier %q: %w", tier.Name, err))
		}
	}
	return errors.Join(errs...)
}

var _ cacheproxy.Store = (*MultiCache)(nil)
