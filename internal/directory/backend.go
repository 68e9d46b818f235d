package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/roach88/geonudge/internal/backend"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

const nearbyPath = "/stores/nearby/"

// Backend queries GET {base}/stores/nearby/?lat=&lng=&radius=<km>.
type Backend struct {
	client *backend.Client
	logger *slog.Logger
}

// NewBackend returns a directory backed by c.
func NewBackend(c *backend.Client, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{client: c, logger: logger}
}

// wireStore is the backend's store serialisation. Decimal fields arrive as
// strings and ids as integers; distance is kilometres.
type wireStore struct {
	ID        backend.FlexString `json:"id"`
	Name      string             `json:"name"`
	StoreType string             `json:"store_type"`
	Latitude  backend.FlexFloat  `json:"latitude"`
	Longitude backend.FlexFloat  `json:"longitude"`
	Distance  *backend.FlexFloat `json:"distance"`
}

func (b *Backend) QueryNearby(ctx context.Context, lat, lng, radiusM float64) ([]model.Store, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("radius", strconv.FormatFloat(radiusM/1000, 'f', -1, 64))

	var wire []wireStore
	if err := b.client.Do(ctx, http.MethodGet, nearbyPath, q, nil, &wire); err != nil {
		var de *backend.DecodeError
		if errors.As(err, &de) {
			return nil, errs.Wrap(err, errs.CodeDirectoryResponseInvalid, "nearby stores response",
				errs.Field("path", nearbyPath))
		}
		return nil, errs.Wrap(err, errs.CodeDirectoryUpstreamFailure, "nearby stores",
			errs.Field("path", nearbyPath))
	}

	stores := make([]model.Store, 0, len(wire))
	for _, w := range wire {
		st, ok := model.ParseStoreType(w.StoreType)
		if !ok {
			b.logger.Debug("skipping store of unknown type", "store_id", w.ID, "store_type", w.StoreType)
			continue
		}
		s := model.Store{
			ID:        w.ID.String(),
			Name:      w.Name,
			StoreType: st,
			Latitude:  w.Latitude.Float64(),
			Longitude: w.Longitude.Float64(),
		}
		if w.Distance != nil {
			m := w.Distance.Float64() * 1000
			s.DistanceM = &m
		}
		stores = append(stores, s.Normalize())
	}
	return stores, nil
}

func (b *Backend) String() string {
	return fmt.Sprintf("backend(%s)", b.client.BaseURL())
}
