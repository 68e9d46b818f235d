package engine

import (
	"context"
	"math"
	"time"

	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
)

// evaluate recomputes each reminder's nearest matching store, steps the mode
// machine on the overall nearest distance, then runs dwell decisions.
func (e *Engine) evaluate(ctx context.Context, now time.Time) {
	cur := e.current
	ids := e.reminderIDsLocked()

	matches := make(map[string]storeMatch, len(ids))
	nearest := math.Inf(1)
	for _, id := range ids {
		m := e.nearestStoreLocked(cur.Latitude, cur.Longitude, e.reminders[id].StoreType)
		matches[id] = m
		if m.found && m.distance < nearest {
			nearest = m.distance
		}
	}

	e.stepModeLocked(ctx, now, nearest)

	for _, id := range ids {
		r, ok := e.reminders[id]
		if !ok {
			continue
		}
		e.stepDwellLocked(ctx, now, r, matches[id])
	}
}

// stepDwellLocked advances one reminder's dwell timer.
//
// Inside trigger_distance a timer starts (or restarts if the nearest store
// changed); once it has run DwellRequired the trigger fires and the timer is
// consumed. Outside, any timer is discarded so re-entry starts from zero.
func (e *Engine) stepDwellLocked(ctx context.Context, now time.Time, r model.Reminder, m storeMatch) {
	d, dwelling := e.dwells[r.ID]

	if !m.found || m.distance > r.TriggerDistance {
		if dwelling {
			e.logger.Debug("dwell reset: left trigger radius",
				"reminder_id", r.ID,
				"store_id", d.storeID,
				"dwelled", now.Sub(d.enteredAt),
			)
			e.clearDwellLocked(ctx, r.ID)
		}
		return
	}

	if !dwelling || d.storeID != m.store.ID {
		if dwelling {
			e.clearDwellLocked(ctx, r.ID)
		}
		e.dwells[r.ID] = dwellState{storeID: m.store.ID, enteredAt: now}
		e.recordBindingLocked(ctx, r.ID, m.store.ID, store.TransitionEnter, now)
		e.logger.Debug("dwell started",
			"reminder_id", r.ID,
			"store_id", m.store.ID,
			"distance_m", m.distance,
		)
		return
	}

	if now.Sub(d.enteredAt) < e.cfg.DwellRequired {
		return
	}

	e.clearDwellLocked(ctx, r.ID)
	e.triggerLocked(ctx, now, r, m, now.Sub(d.enteredAt))
}

// clearDwellLocked drops a reminder's dwell timer and records the exit.
func (e *Engine) clearDwellLocked(ctx context.Context, reminderID string) {
	d, ok := e.dwells[reminderID]
	if !ok {
		return
	}
	delete(e.dwells, reminderID)
	e.recordBindingLocked(ctx, reminderID, d.storeID, store.TransitionExit, e.clock.Now())
}

func (e *Engine) recordBindingLocked(ctx context.Context, reminderID, storeID string, tr store.Transition, at time.Time) {
	if _, err := e.events.UpdateGeofenceState(ctx, reminderID, storeID, tr, at); err != nil {
		e.logger.Warn("geofence state write failed",
			"geofence_id", store.BindingKey(reminderID, storeID),
			"transition", tr,
			"error", err,
		)
	}
}

// logEventLocked appends an event, filling the user position and time from
// the engine's current state. Failures are logged and swallowed.
func (e *Engine) logEventLocked(ctx context.Context, rec store.EventRecord) {
	if rec.UserLat == nil && e.current != nil {
		lat, lng := e.current.Latitude, e.current.Longitude
		rec.UserLat, rec.UserLng = &lat, &lng
	}
	if rec.TriggeredAt.IsZero() {
		rec.TriggeredAt = e.clock.Now()
	}
	if _, err := e.events.LogEvent(ctx, rec); err != nil {
		e.logger.Warn("event log write failed", "event_type", rec.EventType, "error", err)
	}
}
