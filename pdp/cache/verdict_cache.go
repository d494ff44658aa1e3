package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	pdp_model "github.com/dev-mohitbeniwal/trackgate/pdp/model"
)

// VerdictCache holds authorization verdicts keyed by credential digest.
// Entries never outlive their ExpiresAt. Concurrent misses for one key are
// collapsed into a single resolve call.
type VerdictCache struct {
	items *ttlcache.Cache[pdp_model.CacheKey, pdp_model.CacheEntry]
	group singleflight.Group
	now   func() time.Time
}

type Option func(*VerdictCache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *VerdictCache) { c.now = now }
}

// NewVerdictCache builds a cache holding at most size entries. When full,
// the least recently used entry is evicted.
func NewVerdictCache(size int, opts ...Option) *VerdictCache {
	if size <= 0 {
		size = 1
	}
	c := &VerdictCache{
		items: ttlcache.New(
			ttlcache.WithCapacity[pdp_model.CacheKey, pdp_model.CacheEntry](uint64(size)),
			ttlcache.WithDisableTouchOnHit[pdp_model.CacheKey, pdp_model.CacheEntry](),
		),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the cache's notion of the current time.
func (c *VerdictCache) Now() time.Time {
	return c.now()
}

// Get returns a live entry. An expired entry is dropped on the way out.
func (c *VerdictCache) Get(key pdp_model.CacheKey) (pdp_model.CacheEntry, bool) {
	item := c.items.Get(key)
	if item == nil {
		return pdp_model.CacheEntry{}, false
	}
	entry := item.Value()
	if entry.Live(c.now()) {
		return entry, true
	}
	c.items.Delete(key)
	return pdp_model.CacheEntry{}, false
}

// Set stores entry until its ExpiresAt. Entries that are already expired
// are ignored.
func (c *VerdictCache) Set(key pdp_model.CacheKey, entry pdp_model.CacheEntry) {
	ttl := entry.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	c.items.Set(key, entry, ttl)
}

// Invalidate removes key regardless of expiry.
func (c *VerdictCache) Invalidate(key pdp_model.CacheKey) {
	c.items.Delete(key)
}

func (c *VerdictCache) Len() int {
	return c.items.Len()
}

// Purge drops every expired entry and returns how many were removed.
func (c *VerdictCache) Purge() int {
	before := c.items.Len()
	c.items.DeleteExpired()

	now := c.now()
	var stale []pdp_model.CacheKey
	c.items.Range(func(item *ttlcache.Item[pdp_model.CacheKey, pdp_model.CacheEntry]) bool {
		if !item.Value().Live(now) {
			stale = append(stale, item.Key())
		}
		return true
	})
	for _, key := range stale {
		c.items.Delete(key)
	}
	return before - c.items.Len()
}

// Resolve returns the live entry for key, or runs fetch to produce one.
// Only one fetch runs per key at a time; concurrent callers share its
// result. A failed fetch invalidates the key and is not cached. Callers
// whose ctx ends before the shared fetch completes get ctx.Err().
func (c *VerdictCache) Resolve(
	ctx context.Context,
	key pdp_model.CacheKey,
	fetch func() (pdp_model.CacheEntry, error),
) (entry pdp_model.CacheEntry, cached bool, err error) {
	if entry, ok := c.Get(key); ok {
		return entry, true, nil
	}

	ch := c.group.DoChan(string(key[:]), func() (interface{}, error) {
		// A flight that finished just before this one started has
		// already populated the key.
		if entry, ok := c.Get(key); ok {
			return entry, nil
		}
		entry, err := fetch()
		if err != nil {
			c.Invalidate(key)
			return nil, err
		}
		c.Set(key, entry)
		return entry, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return pdp_model.CacheEntry{}, false, res.Err
		}
		return res.Val.(pdp_model.CacheEntry), false, nil
	case <-ctx.Done():
		return pdp_model.CacheEntry{}, false, ctx.Err()
	}
}

// Start runs a janitor that purges expired entries until ctx is done.
func (c *VerdictCache) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.Purge(); n > 0 {
					logger.Debug("Purged expired verdicts", zap.Int("count", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
