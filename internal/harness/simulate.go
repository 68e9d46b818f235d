package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/location"
	"github.com/roach88/geonudge/internal/model"
)

// ReminderFile is the YAML layout of a reminder list used by simulations.
//
//	reminders:
//	  - {id: r-1, store_type: pharmacy, title: vitamins, trigger_distance: 30}
type ReminderFile struct {
	Reminders []ReminderSpec `yaml:"reminders"`
}

// LoadReminders reads a ReminderFile. Unknown fields are rejected.
func LoadReminders(path string) ([]model.Reminder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeHarnessScenarioInvalid, "reading reminders", errs.Field("path", path))
	}

	var f ReminderFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, errs.Wrap(err, errs.CodeHarnessScenarioInvalid, "parsing reminders", errs.Field("path", path))
	}

	out := make([]model.Reminder, 0, len(f.Reminders))
	seen := make(map[string]bool, len(f.Reminders))
	for i, r := range f.Reminders {
		if r.ID == "" {
			return nil, errs.Errorf(errs.CodeHarnessScenarioInvalid, "%s: reminders[%d]: id is required", path, i)
		}
		if seen[r.ID] {
			return nil, errs.Errorf(errs.CodeHarnessScenarioInvalid, "%s: reminders[%d]: duplicate id %q", path, i, r.ID)
		}
		seen[r.ID] = true
		out = append(out, r.Reminder())
	}
	return out, nil
}

// FromTrack builds a scenario that registers every reminder at +0s and then
// feeds each track point as a sample. It carries no assertions; callers
// run it for the trace.
func FromTrack(name string, track *location.Track, stores []model.Store, reminders []model.Reminder) *Scenario {
	s := &Scenario{
		Name:        name,
		Description: fmt.Sprintf("simulated walk over %d points", len(track.Points)),
		Origin:      trackOrigin(track),
	}

	for _, st := range stores {
		lat, lng := st.Latitude, st.Longitude
		s.Stores = append(s.Stores, StoreSpec{
			ID:        st.ID,
			Name:      st.Name,
			StoreType: string(st.StoreType),
			Latitude:  &lat,
			Longitude: &lng,
		})
	}

	for _, r := range reminders {
		active := r.IsActive
		s.Reminders = append(s.Reminders, ReminderSpec{
			ID:              r.ID,
			StoreType:       string(r.StoreType),
			Title:           r.Title,
			Memo:            r.Memo,
			TriggerDistance: r.TriggerDistance,
			IsActive:        &active,
		})
		s.Steps = append(s.Steps, Step{At: 0, Register: r.ID})
	}

	for _, p := range track.Points {
		lat, lng := track.Position(p)
		s.Steps = append(s.Steps, Step{
			At: p.At,
			Sample: &SamplePoint{
				Latitude:  &lat,
				Longitude: &lng,
				Accuracy:  p.Accuracy,
				Speed:     p.Speed,
			},
		})
	}
	return s
}

// trackOrigin is the track's origin, or its first point when every point
// is absolute.
func trackOrigin(t *location.Track) location.Coordinate {
	if t.Origin != nil {
		return *t.Origin
	}
	if len(t.Points) == 0 {
		return location.Coordinate{}
	}
	lat, lng := t.Position(t.Points[0])
	return location.Coordinate{Latitude: lat, Longitude: lng}
}
