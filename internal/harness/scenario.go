package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/location"
	"github.com/roach88/geonudge/internal/model"
)

// Scenario is a scripted walk through the engine: a world of stores and
// reminders, a timed list of steps, and assertions on what happened.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Config overrides engine defaults for this run.
	Config ConfigOverrides `yaml:"config,omitempty"`

	// Permissions defaults to everything granted.
	Permissions *PermissionGrants `yaml:"permissions,omitempty"`

	// Origin anchors the north_m/east_m offsets used by stores and samples.
	Origin location.Coordinate `yaml:"origin"`

	// Stores is what the fake directory serves for every query.
	Stores []StoreSpec `yaml:"stores"`

	// Reminders is the remote repository's content. Steps register them by id.
	Reminders []ReminderSpec `yaml:"reminders"`

	// Steps run in order, each with the clock set to Epoch+At.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// ConfigOverrides replaces individual engine.DefaultConfig values.
type ConfigOverrides struct {
	EnterThresholdM *float64       `yaml:"enter_threshold_m,omitempty"`
	ExitThresholdM  *float64       `yaml:"exit_threshold_m,omitempty"`
	DwellRequired   *time.Duration `yaml:"dwell_required,omitempty"`
	Cooldown        *time.Duration `yaml:"cooldown,omitempty"`
	MaxWalkingSpeed *float64       `yaml:"max_walking_speed,omitempty"`
	SearchRadiusM   *float64       `yaml:"search_radius_m,omitempty"`
	TriggerPolicy   *string        `yaml:"trigger_policy,omitempty"`
	RecordLocations *bool          `yaml:"record_locations,omitempty"`
}

// Apply returns base with every set override applied.
func (o ConfigOverrides) Apply(base engine.Config) engine.Config {
	if o.EnterThresholdM != nil {
		base.EnterThresholdM = *o.EnterThresholdM
	}
	if o.ExitThresholdM != nil {
		base.ExitThresholdM = *o.ExitThresholdM
	}
	if o.DwellRequired != nil {
		base.DwellRequired = *o.DwellRequired
	}
	if o.Cooldown != nil {
		base.Cooldown = *o.Cooldown
	}
	if o.MaxWalkingSpeed != nil {
		base.MaxWalkingSpeed = *o.MaxWalkingSpeed
	}
	if o.SearchRadiusM != nil {
		base.SearchRadiusM = *o.SearchRadiusM
	}
	if o.TriggerPolicy != nil {
		base.TriggerPolicy = engine.TriggerPolicy(*o.TriggerPolicy)
	}
	if o.RecordLocations != nil {
		base.RecordLocations = *o.RecordLocations
	}
	return base
}

// PermissionGrants are the OS grants the engine sees.
type PermissionGrants struct {
	Location      bool `yaml:"location"`
	Notifications bool `yaml:"notifications"`
}

// StoreSpec places a store absolutely or by offset from the origin.
type StoreSpec struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	StoreType string   `yaml:"store_type"`
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`
	NorthM    float64  `yaml:"north_m,omitempty"`
	EastM     float64  `yaml:"east_m,omitempty"`
}

// Store places s relative to origin unless it has absolute coordinates.
func (s StoreSpec) Store(origin location.Coordinate) model.Store {
	lat, lng := geo.Offset(origin.Latitude, origin.Longitude, s.NorthM, s.EastM)
	if s.Latitude != nil && s.Longitude != nil {
		lat, lng = *s.Latitude, *s.Longitude
	}
	return model.Store{
		ID:        s.ID,
		Name:      s.Name,
		StoreType: model.StoreType(s.StoreType),
		Latitude:  lat,
		Longitude: lng,
	}
}

// ReminderSpec is a reminder as the repository holds it.
type ReminderSpec struct {
	ID              string  `yaml:"id"`
	StoreType       string  `yaml:"store_type"`
	Title           string  `yaml:"title"`
	Memo            string  `yaml:"memo,omitempty"`
	TriggerDistance float64 `yaml:"trigger_distance"`
	IsActive        *bool   `yaml:"is_active,omitempty"`
}

// Reminder converts the spec. IsActive defaults to true.
func (r ReminderSpec) Reminder() model.Reminder {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return model.Reminder{
		ID:              r.ID,
		StoreType:       model.StoreType(r.StoreType),
		Title:           r.Title,
		Memo:            r.Memo,
		TriggerDistance: r.TriggerDistance,
		IsActive:        active,
	}
}

// Step is one timed action. Exactly one action field is set.
type Step struct {
	At time.Duration `yaml:"at"`

	Sample     *SamplePoint `yaml:"sample,omitempty"`
	Register   string       `yaml:"register,omitempty"`
	Unregister string       `yaml:"unregister,omitempty"`

	// Directory and Notifier take "down" or "up".
	Directory string `yaml:"directory,omitempty"`
	Notifier  string `yaml:"notifier,omitempty"`

	// ExpectError is the error code the action must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SamplePoint is a position fix, by offset or absolute.
type SamplePoint struct {
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`
	NorthM    float64  `yaml:"north_m,omitempty"`
	EastM     float64  `yaml:"east_m,omitempty"`
	Accuracy  float64  `yaml:"accuracy,omitempty"`
	Speed     *float64 `yaml:"speed,omitempty"`
}

func (p SamplePoint) point(at time.Duration) location.Point {
	return location.Point{
		At:        at,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		NorthM:    p.NorthM,
		EastM:     p.EastM,
		Accuracy:  p.Accuracy,
		Speed:     p.Speed,
	}
}

// Track collects the sample steps into a track anchored at the origin.
func (s *Scenario) Track() *location.Track {
	origin := s.Origin
	t := &location.Track{Origin: &origin}
	for _, step := range s.Steps {
		if step.Sample != nil {
			t.Points = append(t.Points, step.Sample.point(step.At))
		}
	}
	return t
}

func (st Step) action() string {
	var set []string
	if st.Sample != nil {
		set = append(set, "sample")
	}
	if st.Register != "" {
		set = append(set, "register")
	}
	if st.Unregister != "" {
		set = append(set, "unregister")
	}
	if st.Directory != "" {
		set = append(set, "directory")
	}
	if st.Notifier != "" {
		set = append(set, "notifier")
	}
	if len(set) != 1 {
		return ""
	}
	return set[0]
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is the event type (event_contains, event_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Fields are matched as a subset against the event's columns and
	// metadata (event_contains).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Count is the expected number of occurrences (event_count,
	// notification_count).
	Count int `yaml:"count,omitempty"`

	// Table and Where select exactly one row (final_state).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected column values (final_state) or engine status
	// values (engine_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEventContains     = "event_contains"
	AssertEventOrder        = "event_order"
	AssertEventCount        = "event_count"
	AssertNotificationCount = "notification_count"
	AssertFinalState        = "final_state"
	AssertEngineState       = "engine_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeHarnessScenarioInvalid, "reading scenario", errs.Field("path", path))
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeHarnessScenarioInvalid, "loading scenario", errs.Field("path", path))
	}
	return s, nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errs.Wrap(err, errs.CodeHarnessScenarioInvalid, "parsing scenario")
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, errs.Wrap(err, errs.CodeHarnessScenarioInvalid, "invalid scenario")
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and consistent.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if !geo.ValidCoordinate(s.Origin.Latitude, s.Origin.Longitude) {
		return fmt.Errorf("origin %v,%v is not a valid coordinate", s.Origin.Latitude, s.Origin.Longitude)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if problems := s.Config.Apply(engine.DefaultConfig()).Validate(); len(problems) > 0 {
		return fmt.Errorf("config: %w", problems[0])
	}

	storeIDs := make(map[string]bool, len(s.Stores))
	for i, st := range s.Stores {
		if st.ID == "" {
			return fmt.Errorf("stores[%d]: id is required", i)
		}
		if storeIDs[st.ID] {
			return fmt.Errorf("stores[%d]: duplicate id %q", i, st.ID)
		}
		storeIDs[st.ID] = true
		if (st.Latitude == nil) != (st.Longitude == nil) {
			return fmt.Errorf("stores[%d]: latitude and longitude must be given together", i)
		}
	}

	reminderIDs := make(map[string]bool, len(s.Reminders))
	for i, r := range s.Reminders {
		if r.ID == "" {
			return fmt.Errorf("reminders[%d]: id is required", i)
		}
		if reminderIDs[r.ID] {
			return fmt.Errorf("reminders[%d]: duplicate id %q", i, r.ID)
		}
		reminderIDs[r.ID] = true
	}

	var last time.Duration
	for i, step := range s.Steps {
		if step.At < last {
			return fmt.Errorf("steps[%d]: at %s is before the previous step (%s)", i, step.At, last)
		}
		last = step.At

		switch step.action() {
		case "":
			return fmt.Errorf("steps[%d]: exactly one of sample, register, unregister, directory, notifier is required", i)
		case "register":
			if !reminderIDs[step.Register] {
				return fmt.Errorf("steps[%d]: unknown reminder %q", i, step.Register)
			}
		case "directory":
			if step.Directory != "up" && step.Directory != "down" {
				return fmt.Errorf("steps[%d]: directory must be up or down, got %q", i, step.Directory)
			}
		case "notifier":
			if step.Notifier != "up" && step.Notifier != "down" {
				return fmt.Errorf("steps[%d]: notifier must be up or down, got %q", i, step.Notifier)
			}
		}
	}

	if track := s.Track(); len(track.Points) > 0 {
		if err := track.Validate(); err != nil {
			return fmt.Errorf("samples: %v", err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_contains", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertNotificationCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for notification_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertEngineState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for engine_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
