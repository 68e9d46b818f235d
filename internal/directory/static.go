package directory

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
)

// StaticFile is the YAML layout of a static store list.
//
//	stores:
//	  - id: s-1
//	    name: Corner Pharmacy
//	    store_type: pharmacy
//	    latitude: 35.6812
//	    longitude: 139.7671
type StaticFile struct {
	Stores []model.Store `yaml:"stores"`
}

// Static answers queries from a fixed store list.
type Static struct {
	stores []model.Store
}

// NewStatic validates stores and returns a directory over them.
func NewStatic(stores []model.Store) (*Static, error) {
	out := make([]model.Store, 0, len(stores))
	seen := make(map[string]bool, len(stores))
	for i, s := range stores {
		s = s.Normalize()
		s.DistanceM = nil
		switch {
		case s.ID == "":
			return nil, errs.Errorf(errs.CodeDirectoryFileInvalid, "stores[%d]: id is required", i)
		case seen[s.ID]:
			return nil, errs.Errorf(errs.CodeDirectoryFileInvalid, "stores[%d]: duplicate id %q", i, s.ID)
		case !s.StoreType.Valid():
			return nil, errs.Errorf(errs.CodeDirectoryFileInvalid, "stores[%d]: unknown store_type %q", i, s.StoreType)
		case !geo.ValidCoordinate(s.Latitude, s.Longitude):
			return nil, errs.Errorf(errs.CodeDirectoryFileInvalid, "stores[%d]: invalid coordinate", i)
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return &Static{stores: out}, nil
}

// LoadStatic reads a StaticFile. Unknown fields are rejected.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeDirectoryFileInvalid, "reading store file", errs.Field("path", path))
	}

	var f StaticFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, errs.Wrap(err, errs.CodeDirectoryFileInvalid, "parsing store file", errs.Field("path", path))
	}
	s, err := NewStatic(f.Stores)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// QueryNearby returns stores within radiusM of the centre, nearest first.
func (s *Static) QueryNearby(_ context.Context, lat, lng, radiusM float64) ([]model.Store, error) {
	out := make([]model.Store, 0)
	for _, st := range s.stores {
		d := geo.Distance(lat, lng, st.Latitude, st.Longitude)
		if d > radiusM {
			continue
		}
		st.DistanceM = &d
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceM < *out[j].DistanceM })
	return out, nil
}

// Len returns the number of stores in the list.
func (s *Static) Len() int { return len(s.stores) }

// Stores returns a copy of the store list.
func (s *Static) Stores() []model.Store {
	return copyStores(s.stores)
}
