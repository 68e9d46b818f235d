package store

import (
	"strings"
	"time"

	"github.com/roach88/geonudge/internal/model"
)

// EventType names an event_logs row kind.
type EventType string

const (
	EventGeofenceEnter   EventType = "GEOFENCE_ENTER"
	EventReminderCreated EventType = "REMINDER_CREATED"
	EventReminderDeleted EventType = "REMINDER_DELETED"
	EventModeChange      EventType = "MODE_CHANGE"
	EventPreciseExtended EventType = "PRECISE_EXTENDED"
	EventStoresRefreshed EventType = "STORES_REFRESHED"
	EventLocationChange  EventType = "SIGNIFICANT_LOCATION_CHANGE"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventGeofenceEnter, EventReminderCreated, EventReminderDeleted,
		EventModeChange, EventPreciseExtended, EventStoresRefreshed, EventLocationChange:
		return true
	}
	return false
}

// EventRecord is one event_logs row. Empty strings and nil pointers are
// stored as NULL.
type EventRecord struct {
	ID            int64          `json:"id"`
	EventType     EventType      `json:"event_type"`
	ReminderID    string         `json:"reminder_id,omitempty"`
	ReminderTitle string         `json:"reminder_title,omitempty"`
	StoreID       string         `json:"store_id,omitempty"`
	StoreName     string         `json:"store_name,omitempty"`
	StoreType     string         `json:"store_type,omitempty"`
	UserLat       *float64       `json:"user_lat,omitempty"`
	UserLng       *float64       `json:"user_lng,omitempty"`
	StoreLat      *float64       `json:"store_lat,omitempty"`
	StoreLng      *float64       `json:"store_lng,omitempty"`
	Distance      *float64       `json:"distance,omitempty"`
	TriggeredAt   time.Time      `json:"triggered_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Synced        bool           `json:"synced"`
}

// LocationRecord is one location_history row.
type LocationRecord struct {
	ID        int64             `json:"id"`
	Lat       float64           `json:"lat"`
	Lng       float64           `json:"lng"`
	Accuracy  float64           `json:"accuracy"`
	Altitude  *float64          `json:"altitude,omitempty"`
	Speed     *float64          `json:"speed,omitempty"`
	Heading   *float64          `json:"heading,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Activity  model.ActivityTag `json:"activity_type"`
	Synced    bool              `json:"synced"`
}

// Transition is the edge recorded by UpdateGeofenceState.
type Transition string

const (
	TransitionEnter Transition = "ENTER"
	TransitionExit  Transition = "EXIT"
)

// GeofenceStatus is the persisted state of a binding.
type GeofenceStatus string

const (
	StatusEntered GeofenceStatus = "ENTERED"
	StatusExited  GeofenceStatus = "EXITED"
)

// GeofenceStateRow is one geofence_states row.
type GeofenceStateRow struct {
	GeofenceID  string         `json:"geofence_id"`
	ReminderID  string         `json:"reminder_id"`
	StoreID     string         `json:"store_id"`
	State       GeofenceStatus `json:"state"`
	EnteredAt   *time.Time     `json:"entered_at,omitempty"`
	ExitedAt    *time.Time     `json:"exited_at,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
}

// BindingKey is the geofence_states key for a (reminder, store) pair:
// "<reminder_id>_<store_id>", with any '_' or '\' inside an id escaped by a
// backslash so that distinct pairs never share a key.
func BindingKey(reminderID, storeID string) string {
	return keyEscaper.Replace(reminderID) + "_" + keyEscaper.Replace(storeID)
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `_`, `\_`)

// TodayStats are the counts for the current local calendar day.
type TodayStats struct {
	TotalEvents  int `json:"total_events"`
	Triggers     int `json:"triggers"`
	UniqueStores int `json:"unique_stores"`
}

// Stats are whole-database totals.
type Stats struct {
	Events          int `json:"events"`
	UnsyncedEvents  int `json:"unsynced_events"`
	Locations       int `json:"locations"`
	GeofenceStates  int `json:"geofence_states"`
	ActiveGeofences int `json:"active_geofences"`
}

// CleanupResult counts rows removed by Cleanup.
type CleanupResult struct {
	Events    int64 `json:"events"`
	Locations int64 `json:"locations"`
}
