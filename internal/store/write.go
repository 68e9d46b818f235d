package store

import (
	"context"
	"time"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
)

// LogEvent appends an event and returns its id.
//
// The record is validated first: the event type must be known, the user
// coordinate (when present) valid and TriggeredAt set. Text fields are NFC-normalised.
func (s *Store) LogEvent(ctx context.Context, rec EventRecord) (int64, error) {
	if !rec.EventType.Valid() {
		return 0, errs.New(errs.CodeStoreEventInvalid, "unknown event type",
			errs.Field("event_type", string(rec.EventType)))
	}
	if (rec.UserLat == nil) != (rec.UserLng == nil) {
		return 0, errs.New(errs.CodeStoreEventInvalid, "user coordinate needs both lat and lng")
	}
	if rec.UserLat != nil && !geo.ValidCoordinate(*rec.UserLat, *rec.UserLng) {
		return 0, errs.New(errs.CodeStoreEventInvalid, "invalid user coordinate",
			errs.Field("lat", *rec.UserLat), errs.Field("lng", *rec.UserLng))
	}
	if rec.TriggeredAt.IsZero() {
		return 0, errs.New(errs.CodeStoreEventInvalid, "triggered_at is required")
	}

	metadata, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeStoreEventInvalid, "log event")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_logs
		(event_type, reminder_id, reminder_title, store_id, store_name, store_type,
		 user_lat, user_lng, store_lat, store_lng, distance, triggered_at, metadata, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(rec.EventType),
		nullString(rec.ReminderID),
		nullString(model.NormalizeText(rec.ReminderTitle)),
		nullString(rec.StoreID),
		nullString(model.NormalizeText(rec.StoreName)),
		nullString(rec.StoreType),
		nullFloat(rec.UserLat),
		nullFloat(rec.UserLng),
		nullFloat(rec.StoreLat),
		nullFloat(rec.StoreLng),
		nullFloat(rec.Distance),
		rec.TriggeredAt.UnixMilli(),
		metadata,
		boolInt(rec.Synced),
	)
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "log event")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "log event id")
	}
	return id, nil
}

// LogLocation appends a location sample and returns its id.
func (s *Store) LogLocation(ctx context.Context, rec LocationRecord) (int64, error) {
	if !geo.ValidCoordinate(rec.Lat, rec.Lng) {
		return 0, errs.New(errs.CodeStoreLocationInvalid, "invalid coordinate",
			errs.Field("lat", rec.Lat), errs.Field("lng", rec.Lng))
	}
	if rec.Timestamp.IsZero() {
		return 0, errs.New(errs.CodeStoreLocationInvalid, "timestamp is required")
	}
	activity := rec.Activity
	if activity == "" {
		activity = model.ActivityWalking
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO location_history
		(lat, lng, accuracy, altitude, speed, heading, timestamp, activity_type, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Lat,
		rec.Lng,
		rec.Accuracy,
		nullFloat(rec.Altitude),
		nullFloat(rec.Speed),
		nullFloat(rec.Heading),
		rec.Timestamp.UnixMilli(),
		string(activity),
		boolInt(rec.Synced),
	)
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "log location")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "log location id")
	}
	return id, nil
}

// UpdateGeofenceState records a binding transition at the given time.
//
// ENTER upserts the row as ENTERED with entered_at=at and clears exited_at.
// EXIT marks an existing row EXITED with exited_at=at. An EXIT for a binding
// that was never entered is a no-op and reports applied=false.
func (s *Store) UpdateGeofenceState(ctx context.Context, reminderID, storeID string, tr Transition, at time.Time) (applied bool, err error) {
	if reminderID == "" || storeID == "" {
		return false, errs.New(errs.CodeStoreEventInvalid, "binding requires reminder and store ids")
	}
	key := BindingKey(reminderID, storeID)
	ms := at.UnixMilli()

	switch tr {
	case TransitionEnter:
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO geofence_states
			(geofence_id, reminder_id, store_id, state, entered_at, exited_at, last_updated)
			VALUES (?, ?, ?, 'ENTERED', ?, NULL, ?)
			ON CONFLICT(geofence_id) DO UPDATE SET
				state = 'ENTERED',
				entered_at = excluded.entered_at,
				exited_at = NULL,
				last_updated = excluded.last_updated
		`, key, reminderID, storeID, ms, ms)
		if err != nil {
			return false, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "enter geofence",
				errs.Field("geofence_id", key))
		}
		return true, nil

	case TransitionExit:
		res, err := s.db.ExecContext(ctx, `
			UPDATE geofence_states
			SET state = 'EXITED', exited_at = ?, last_updated = ?
			WHERE geofence_id = ?
		`, ms, ms, key)
		if err != nil {
			return false, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "exit geofence",
				errs.Field("geofence_id", key))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "exit geofence rows")
		}
		return n > 0, nil

	default:
		return false, errs.New(errs.CodeStoreEventInvalid, "unknown transition",
			errs.Field("transition", string(tr)))
	}
}

// RecordTrigger stores the last trigger time for a reminder.
func (s *Store) RecordTrigger(ctx context.Context, reminderID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trigger_marks (reminder_id, last_triggered_at)
		VALUES (?, ?)
		ON CONFLICT(reminder_id) DO UPDATE SET last_triggered_at = excluded.last_triggered_at
	`, reminderID, at.UnixMilli())
	if err != nil {
		return errs.Wrap(err, errs.CodeStoreDatabaseFailure, "record trigger",
			errs.Field("reminder_id", reminderID))
	}
	return nil
}
