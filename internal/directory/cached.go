package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/model"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultCacheSize = 256
)

// Cached memoises another directory's answers. Entries are keyed by the
// query centre rounded to four decimal places (about 11m) and the radius in
// whole metres. Failed lookups are not cached.
type Cached struct {
	next  engine.StoreDirectory
	cache *expirable.LRU[string, []model.Store]
}

// NewCached wraps next. Non-positive size or ttl select the defaults.
func NewCached(next engine.StoreDirectory, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, []model.Store](size, nil, ttl),
	}
}

func cacheKey(lat, lng, radiusM float64) string {
	return fmt.Sprintf("%.4f_%.4f_%.0f", lat, lng, radiusM)
}

func (c *Cached) QueryNearby(ctx context.Context, lat, lng, radiusM float64) ([]model.Store, error) {
	key := cacheKey(lat, lng, radiusM)
	if stores, ok := c.cache.Get(key); ok {
		return copyStores(stores), nil
	}

	stores, err := c.next.QueryNearby(ctx, lat, lng, radiusM)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, copyStores(stores))
	return stores, nil
}

// Purge drops every cached answer.
func (c *Cached) Purge() { c.cache.Purge() }

// Len returns the number of cached answers.
func (c *Cached) Len() int { return c.cache.Len() }

func copyStores(in []model.Store) []model.Store {
	out := make([]model.Store, len(in))
	for i, s := range in {
		if s.DistanceM != nil {
			d := *s.DistanceM
			s.DistanceM = &d
		}
		out[i] = s
	}
	return out
}
