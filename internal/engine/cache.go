package engine

import (
	"context"
	"math"
	"time"

	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
)

// refreshStoresLocked re-queries the store directory when the cache is
// empty, older than the current mode's TTL, or centred more than half the
// search radius away from the user. On failure the stale cache is kept and
// the next sample retries.
func (e *Engine) refreshStoresLocked(ctx context.Context, now time.Time) {
	cur := e.current
	var reason string
	switch {
	case e.cacheAt.IsZero():
		reason = "initial"
	case now.Sub(e.cacheAt) > e.cfg.cacheTTL(e.mode):
		reason = "expired"
	default:
		moved := geo.Distance(e.cacheLat, e.cacheLng, cur.Latitude, cur.Longitude)
		if moved <= e.cfg.SearchRadiusM/2 {
			return
		}
		reason = "displaced"
		e.logEventLocked(ctx, store.EventRecord{
			EventType: store.EventLocationChange,
			Metadata: map[string]any{
				"moved_m": round1(moved),
			},
		})
	}

	qctx, cancel := context.WithTimeout(ctx, e.cfg.NetworkTimeout)
	defer cancel()

	found, err := e.directory.QueryNearby(qctx, cur.Latitude, cur.Longitude, e.cfg.SearchRadiusM)
	if err != nil {
		e.logger.Warn("store directory refresh failed, keeping cache",
			"reason", reason,
			"cached_stores", len(e.stores),
			"error", err,
		)
		return
	}

	stores := make([]model.Store, 0, len(found))
	for _, st := range found {
		st = st.Normalize()
		if st.ID == "" || !st.StoreType.Valid() || !geo.ValidCoordinate(st.Latitude, st.Longitude) {
			e.logger.Debug("store dropped from cache", "store_id", st.ID)
			continue
		}
		stores = append(stores, st)
	}

	e.stores = stores
	e.cacheAt = now
	e.cacheLat, e.cacheLng = cur.Latitude, cur.Longitude

	e.logEventLocked(ctx, store.EventRecord{
		EventType: store.EventStoresRefreshed,
		Metadata: map[string]any{
			"count":    len(stores),
			"reason":   reason,
			"radius_m": e.cfg.SearchRadiusM,
		},
	})
	e.logger.Debug("store cache refreshed", "count", len(stores), "reason", reason)
}

// storeMatch is the nearest cached store of a type.
type storeMatch struct {
	store    model.Store
	distance float64
	found    bool
}

// nearestStoreLocked scans the cache for the closest store of type t.
func (e *Engine) nearestStoreLocked(lat, lng float64, t model.StoreType) storeMatch {
	best := storeMatch{distance: math.Inf(1)}
	for _, st := range e.stores {
		if st.StoreType != t {
			continue
		}
		d := geo.Distance(lat, lng, st.Latitude, st.Longitude)
		if d < best.distance {
			best = storeMatch{store: st, distance: d, found: true}
		}
	}
	return best
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
