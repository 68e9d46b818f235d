package location

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
)

// Track is a recorded or hand-written walk.
//
//	origin: {latitude: 35.6812, longitude: 139.7671}
//	points:
//	  - {at: 0s, north_m: 400}
//	  - {at: 30s, north_m: 20, accuracy: 8}
//	  - {at: 45s, latitude: 35.6813, longitude: 139.7671}
type Track struct {
	Origin *Coordinate `yaml:"origin,omitempty"`
	Points []Point     `yaml:"points"`
}

type Coordinate struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Point is one fix, positioned either absolutely or by metre offsets from
// the track origin.
type Point struct {
	At        time.Duration `yaml:"at"`
	Latitude  *float64      `yaml:"latitude,omitempty"`
	Longitude *float64      `yaml:"longitude,omitempty"`
	NorthM    float64       `yaml:"north_m,omitempty"`
	EastM     float64       `yaml:"east_m,omitempty"`
	Accuracy  float64       `yaml:"accuracy,omitempty"`
	Speed     *float64      `yaml:"speed,omitempty"`
}

// LoadTrack reads a track file. Unknown fields are rejected.
func LoadTrack(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeLocationTrackInvalid, "reading track", errs.Field("path", path))
	}
	return ParseTrack(data)
}

// ParseTrack decodes and validates a YAML track.
func ParseTrack(data []byte) (*Track, error) {
	var t Track
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&t); err != nil {
		return nil, errs.Wrap(err, errs.CodeLocationTrackInvalid, "parsing track")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks ordering and that every point can be positioned.
func (t *Track) Validate() error {
	if len(t.Points) == 0 {
		return errs.New(errs.CodeLocationTrackInvalid, "track has no points")
	}
	if t.Origin != nil && !geo.ValidCoordinate(t.Origin.Latitude, t.Origin.Longitude) {
		return errs.New(errs.CodeLocationTrackInvalid, "track origin is not a valid coordinate")
	}
	var prev time.Duration
	for i, p := range t.Points {
		if p.At < prev {
			return errs.Errorf(errs.CodeLocationTrackInvalid, "points[%d]: at %s is before %s", i, p.At, prev)
		}
		prev = p.At
		absolute := p.Latitude != nil || p.Longitude != nil
		if absolute && (p.Latitude == nil || p.Longitude == nil) {
			return errs.Errorf(errs.CodeLocationTrackInvalid, "points[%d]: latitude and longitude go together", i)
		}
		if !absolute && t.Origin == nil {
			return errs.Errorf(errs.CodeLocationTrackInvalid, "points[%d]: offsets need a track origin", i)
		}
	}
	return nil
}

// Position resolves a point to a coordinate.
func (t *Track) Position(p Point) (lat, lng float64) {
	if p.Latitude != nil && p.Longitude != nil {
		return *p.Latitude, *p.Longitude
	}
	return geo.Offset(t.Origin.Latitude, t.Origin.Longitude, p.NorthM, p.EastM)
}

// Sample converts p to a sample timestamped start+p.At.
func (t *Track) Sample(p Point, start time.Time) model.Sample {
	lat, lng := t.Position(p)
	s := model.Sample{
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  p.Accuracy,
		Timestamp: start.Add(p.At),
	}
	if p.Speed != nil {
		v := *p.Speed
		s.Speed = &v
	}
	return s
}

// Samples returns every point as a sample, timestamps relative to start.
func (t *Track) Samples(start time.Time) []model.Sample {
	out := make([]model.Sample, 0, len(t.Points))
	for _, p := range t.Points {
		out = append(out, t.Sample(p, start))
	}
	return out
}

// Duration is the offset of the last point.
func (t *Track) Duration() time.Duration {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[len(t.Points)-1].At
}

func (p Point) String() string {
	if p.Latitude != nil && p.Longitude != nil {
		return fmt.Sprintf("%s @ %.6f,%.6f", p.At, *p.Latitude, *p.Longitude)
	}
	return fmt.Sprintf("%s @ +%.0fm N +%.0fm E", p.At, p.NorthM, p.EastM)
}
