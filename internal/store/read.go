package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

// QueryTimeline returns events newest first, paginated.
// Returns an empty slice (not nil) when there are no rows.
func (s *Store) QueryTimeline(ctx context.Context, limit, offset int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, reminder_id, reminder_title, store_id, store_name, store_type,
		       user_lat, user_lng, store_lat, store_lng, distance, triggered_at, metadata, synced
		FROM event_logs
		ORDER BY triggered_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "query timeline")
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "iterate timeline")
	}
	return events, nil
}

// EventsSince returns events with id greater than afterID in id order.
// Used by the harness to render a trace.
func (s *Store) EventsSince(ctx context.Context, afterID int64) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, reminder_id, reminder_title, store_id, store_name, store_type,
		       user_lat, user_lng, store_lat, store_lng, distance, triggered_at, metadata, synced
		FROM event_logs
		WHERE id > ?
		ORDER BY id ASC
	`, afterID)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "query events")
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "iterate events")
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (EventRecord, error) {
	var (
		rec                                                  EventRecord
		eventType, metadata                                  string
		reminderID, reminderTitle, storeID, storeName, sType sql.NullString
		userLat, userLng, storeLat, storeLng, distance       sql.NullFloat64
		triggeredAt                                          int64
		synced                                               int
	)
	if err := rows.Scan(&rec.ID, &eventType, &reminderID, &reminderTitle, &storeID, &storeName, &sType,
		&userLat, &userLng, &storeLat, &storeLng, &distance, &triggeredAt, &metadata, &synced); err != nil {
		return EventRecord{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "scan event")
	}

	meta, err := unmarshalMetadata(metadata)
	if err != nil {
		return EventRecord{}, fmt.Errorf("event %d: %w", rec.ID, err)
	}

	rec.EventType = EventType(eventType)
	rec.ReminderID = reminderID.String
	rec.ReminderTitle = reminderTitle.String
	rec.StoreID = storeID.String
	rec.StoreName = storeName.String
	rec.StoreType = sType.String
	rec.UserLat = floatPtr(userLat)
	rec.UserLng = floatPtr(userLng)
	rec.StoreLat = floatPtr(storeLat)
	rec.StoreLng = floatPtr(storeLng)
	rec.Distance = floatPtr(distance)
	rec.TriggeredAt = time.UnixMilli(triggeredAt)
	rec.Metadata = meta
	rec.Synced = synced != 0
	return rec, nil
}

// GeofenceState returns the row for a binding key.
// Returns a store.geofence_state.not_found error when no row exists.
func (s *Store) GeofenceState(ctx context.Context, geofenceID string) (GeofenceStateRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT geofence_id, reminder_id, store_id, state, entered_at, exited_at, last_updated
		FROM geofence_states
		WHERE geofence_id = ?
	`, geofenceID)

	st, err := scanGeofenceState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return GeofenceStateRow{}, errs.New(errs.CodeStoreGeofenceStateNotFound, "geofence state not found",
			errs.Field("geofence_id", geofenceID))
	}
	if err != nil {
		return GeofenceStateRow{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "read geofence state")
	}
	return st, nil
}

// ActiveGeofenceStates returns ENTERED rows whose entered_at is at or after since,
// oldest first.
func (s *Store) ActiveGeofenceStates(ctx context.Context, since time.Time) ([]GeofenceStateRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT geofence_id, reminder_id, store_id, state, entered_at, exited_at, last_updated
		FROM geofence_states
		WHERE state = 'ENTERED' AND entered_at >= ?
		ORDER BY entered_at ASC, geofence_id ASC
	`, since.UnixMilli())
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "query active geofences")
	}
	defer rows.Close()

	states := []GeofenceStateRow{}
	for rows.Next() {
		st, err := scanGeofenceState(rows)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "scan geofence state")
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "iterate geofence states")
	}
	return states, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeofenceState(r rowScanner) (GeofenceStateRow, error) {
	var (
		st                  GeofenceStateRow
		state               string
		enteredAt, exitedAt sql.NullInt64
		lastUpdated         int64
	)
	if err := r.Scan(&st.GeofenceID, &st.ReminderID, &st.StoreID, &state, &enteredAt, &exitedAt, &lastUpdated); err != nil {
		return GeofenceStateRow{}, err
	}
	st.State = GeofenceStatus(state)
	st.EnteredAt = timePtr(enteredAt)
	st.ExitedAt = timePtr(exitedAt)
	st.LastUpdated = time.UnixMilli(lastUpdated)
	return st, nil
}

// LastTrigger returns the last recorded trigger time for a reminder.
// ok is false when the reminder has never triggered.
func (s *Store) LastTrigger(ctx context.Context, reminderID string) (at time.Time, ok bool, err error) {
	var ms int64
	err = s.db.QueryRowContext(ctx,
		`SELECT last_triggered_at FROM trigger_marks WHERE reminder_id = ?`, reminderID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "read last trigger",
			errs.Field("reminder_id", reminderID))
	}
	return time.UnixMilli(ms), true, nil
}

// LocationHistory returns the most recent location samples, newest first.
func (s *Store) LocationHistory(ctx context.Context, limit int) ([]LocationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lat, lng, accuracy, altitude, speed, heading, timestamp, activity_type, synced
		FROM location_history
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "query location history")
	}
	defer rows.Close()

	locations := []LocationRecord{}
	for rows.Next() {
		var (
			rec                      LocationRecord
			altitude, speed, heading sql.NullFloat64
			ts                       int64
			activity                 string
			synced                   int
		)
		if err := rows.Scan(&rec.ID, &rec.Lat, &rec.Lng, &rec.Accuracy, &altitude, &speed, &heading,
			&ts, &activity, &synced); err != nil {
			return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "scan location")
		}
		rec.Altitude = floatPtr(altitude)
		rec.Speed = floatPtr(speed)
		rec.Heading = floatPtr(heading)
		rec.Timestamp = time.UnixMilli(ts)
		rec.Activity = model.ActivityTag(activity)
		rec.Synced = synced != 0
		locations = append(locations, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "iterate locations")
	}
	return locations, nil
}
