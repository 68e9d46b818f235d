package engine

import (
	"context"
	"time"

	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
)

// LocationSource emits position samples under a sampling profile.
// Subscribing again reconfigures the source; implementations close the
// previously returned channel.
type LocationSource interface {
	Subscribe(ctx context.Context, profile model.Profile) (<-chan model.Sample, error)
	Unsubscribe(ctx context.Context) error
}

// StoreDirectory returns candidate stores around a coordinate.
// An error means the lookup failed; an empty slice means there are no stores.
type StoreDirectory interface {
	QueryNearby(ctx context.Context, lat, lng, radiusM float64) ([]model.Store, error)
}

// ReminderRepository is the source of truth for reminders.
type ReminderRepository interface {
	List(ctx context.Context) ([]model.Reminder, error)
	Patch(ctx context.Context, id string, patch model.ReminderPatch) error
}

// NotificationSink delivers a user-visible alert.
type NotificationSink interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Permissions reports the OS-level grants the engine needs.
type Permissions interface {
	LocationGranted(ctx context.Context) bool
	NotificationsGranted(ctx context.Context) bool
}

// EventStore is the subset of *store.Store the engine writes and reads.
type EventStore interface {
	LogEvent(ctx context.Context, rec store.EventRecord) (int64, error)
	LogLocation(ctx context.Context, rec store.LocationRecord) (int64, error)
	UpdateGeofenceState(ctx context.Context, reminderID, storeID string, tr store.Transition, at time.Time) (bool, error)
	ActiveGeofenceStates(ctx context.Context, since time.Time) ([]store.GeofenceStateRow, error)
	RecordTrigger(ctx context.Context, reminderID string, at time.Time) error
	LastTrigger(ctx context.Context, reminderID string) (time.Time, bool, error)
}

// GrantAll is a Permissions that grants everything.
type GrantAll struct{}

func (GrantAll) LocationGranted(context.Context) bool      { return true }
func (GrantAll) NotificationsGranted(context.Context) bool { return true }

// StaticPermissions reports fixed grants, typically from configuration.
type StaticPermissions struct {
	Location      bool
	Notifications bool
}

func (p StaticPermissions) LocationGranted(context.Context) bool      { return p.Location }
func (p StaticPermissions) NotificationsGranted(context.Context) bool { return p.Notifications }
