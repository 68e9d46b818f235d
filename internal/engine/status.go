package engine

import (
	"context"
	"time"

	"github.com/roach88/geonudge/internal/model"
)

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Inert            bool          `json:"inert"`
	InertReason      string        `json:"inert_reason,omitempty"`
	Running          bool          `json:"running"`
	Monitoring       bool          `json:"monitoring"`
	Mode             model.Mode    `json:"mode"`
	ModeEnteredAt    *time.Time    `json:"mode_entered_at,omitempty"`
	PreciseDuration  float64       `json:"precise_duration_s"`
	Profile          string        `json:"profile,omitempty"`
	ActiveReminders  int           `json:"active_reminders"`
	CachedStores     int           `json:"cached_stores"`
	PendingDwells    int           `json:"pending_dwells"`
	LastStoreRefresh *time.Time    `json:"last_store_refresh,omitempty"`
	CurrentLocation  *model.Sample `json:"current_location,omitempty"`
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Inert:           e.inert,
		InertReason:     e.inertReason,
		Running:         e.running.Load(),
		Monitoring:      e.monitoring,
		Mode:            e.mode,
		PreciseDuration: e.preciseDuration.Seconds(),
		ActiveReminders: len(e.reminders),
		CachedStores:    len(e.stores),
		PendingDwells:   len(e.dwells),
	}
	if !e.modeEnteredAt.IsZero() {
		t := e.modeEnteredAt
		st.ModeEnteredAt = &t
	}
	if !e.cacheAt.IsZero() {
		t := e.cacheAt
		st.LastStoreRefresh = &t
	}
	if e.current != nil {
		c := *e.current
		st.CurrentLocation = &c
	}
	if p := e.activeProfile.Load(); p != nil {
		st.Profile = p.Name
	}
	return st
}

// Restore seeds dwell timers from ENTERED geofence states younger than the
// restore window, so a restart shortly after entering a radius does not
// throw away the time already spent there. Only registered reminders
// without a running timer are restored. Returns how many were seeded.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	if e.cfg.DwellRestoreWindow <= 0 {
		return 0, nil
	}
	since := e.clock.Now().Add(-e.cfg.DwellRestoreWindow)
	rows, err := e.events.ActiveGeofenceStates(ctx, since)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, row := range rows {
		if row.EnteredAt == nil {
			continue
		}
		if _, ok := e.reminders[row.ReminderID]; !ok {
			continue
		}
		if _, ok := e.dwells[row.ReminderID]; ok {
			continue
		}
		e.dwells[row.ReminderID] = dwellState{storeID: row.StoreID, enteredAt: *row.EnteredAt}
		n++
	}
	if n > 0 {
		e.logger.Info("dwell timers restored", "count", n)
	}
	return n, nil
}
