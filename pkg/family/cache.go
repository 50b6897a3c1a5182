package family

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = 5 * time.Minute
)

// Cache wraps a Source with a per-owner TTL cache. Concurrent misses for the
// same owner share one load; a refresh that races a later one simply
// overwrites it.
type Cache struct {
	source Source
	lru    *expirable.LRU[string, Roster]
	group  singleflight.Group
}

var _ Source = (*Cache)(nil)

// NewCache creates a roster cache. Zero values fall back to a 5 minute TTL
// and 128 owners.
func NewCache(source Source, ttl time.Duration, size int) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	return &Cache{
		source: source,
		lru:    expirable.NewLRU[string, Roster](size, nil, ttl),
	}
}

// Roster returns the cached roster for ownerID, loading it on a miss.
func (c *Cache) Roster(ctx context.Context, ownerID string) (Roster, error) {
	if r, ok := c.lru.Get(ownerID); ok {
		return r, nil
	}

	// The load is shared by every waiting caller, so it must outlive the
	// first caller's cancellation.
	load := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(ownerID, func() (interface{}, error) {
		r, err := c.source.Roster(load, ownerID)
		if err != nil {
			return nil, err
		}
		// Copy so callers cannot mutate the cached slice.
		snapshot := append(Roster(nil), r...)
		c.lru.Add(ownerID, snapshot)
		return snapshot, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for %s: %w", ownerID, err)
	}
	return v.(Roster), nil
}

// Invalidate drops the cached roster for ownerID.
func (c *Cache) Invalidate(ownerID string) {
	c.lru.Remove(ownerID)
}
