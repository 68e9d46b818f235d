package store

import (
	"context"
	"time"

	"github.com/roach88/geonudge/internal/errs"
)

// TodayStats counts events on the current local calendar day: all events,
// GEOFENCE_ENTER events, and distinct stores entered.
func (s *Store) TodayStats(ctx context.Context) (TodayStats, error) {
	start, end := dayBounds(s.now())

	var st TodayStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT CASE WHEN event_type = ? THEN store_id END)
		FROM event_logs
		WHERE triggered_at >= ? AND triggered_at < ?
	`, string(EventGeofenceEnter), string(EventGeofenceEnter), start.UnixMilli(), end.UnixMilli()).
		Scan(&st.TotalEvents, &st.Triggers, &st.UniqueStores)
	if err != nil {
		return TodayStats{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "today stats")
	}
	return st, nil
}

// Stats returns whole-database totals.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM event_logs),
			(SELECT COUNT(*) FROM event_logs WHERE synced = 0),
			(SELECT COUNT(*) FROM location_history),
			(SELECT COUNT(*) FROM geofence_states),
			(SELECT COUNT(*) FROM geofence_states WHERE state = 'ENTERED')
	`).Scan(&st.Events, &st.UnsyncedEvents, &st.Locations, &st.GeofenceStates, &st.ActiveGeofences)
	if err != nil {
		return Stats{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "stats")
	}
	return st, nil
}

// Cleanup deletes event and location rows older than retentionDays and
// returns how many of each were removed. Both deletes run in one transaction.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	if retentionDays < 0 {
		return CleanupResult{}, errs.New(errs.CodeStoreEventInvalid, "retention days must not be negative",
			errs.Field("retention_days", retentionDays))
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays).UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CleanupResult{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "begin cleanup")
	}
	defer tx.Rollback()

	var res CleanupResult
	r, err := tx.ExecContext(ctx, `DELETE FROM event_logs WHERE triggered_at < ?`, cutoff)
	if err != nil {
		return CleanupResult{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "cleanup events")
	}
	if res.Events, err = r.RowsAffected(); err != nil {
		return CleanupResult{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "cleanup events")
	}

	r, err = tx.ExecContext(ctx, `DELETE FROM location_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return CleanupResult{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "cleanup locations")
	}
	if res.Locations, err = r.RowsAffected(); err != nil {
		return CleanupResult{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "cleanup locations")
	}

	if err := tx.Commit(); err != nil {
		return CleanupResult{}, errs.Wrap(err, errs.CodeStoreDatabaseFailure, "commit cleanup")
	}
	return res, nil
}

// dayBounds returns [midnight, next midnight) of t's local day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
