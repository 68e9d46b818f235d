package engine

import (
	"context"
	"time"

	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
)

// NotificationType tags notification data produced by a geofence trigger.
const NotificationType = "geofence_trigger"

// triggerLocked fires a dwell-confirmed hit unless the reminder is inside its
// cooldown window: log GEOFENCE_ENTER, notify, remember the trigger time,
// then apply the trigger policy.
func (e *Engine) triggerLocked(ctx context.Context, now time.Time, r model.Reminder, m storeMatch, dwelled time.Duration) {
	if last, ok := e.lastTriggerLocked(ctx, r.ID); ok && now.Sub(last) < e.cfg.Cooldown {
		e.logger.Debug("trigger skipped: cooldown",
			"reminder_id", r.ID,
			"since_last", now.Sub(last),
			"cooldown", e.cfg.Cooldown,
		)
		return
	}

	triggerID := e.ids.Generate()
	distance := round1(m.distance)
	storeLat, storeLng := m.store.Latitude, m.store.Longitude

	e.logEventLocked(ctx, store.EventRecord{
		EventType:     store.EventGeofenceEnter,
		ReminderID:    r.ID,
		ReminderTitle: r.Title,
		StoreID:       m.store.ID,
		StoreName:     m.store.Name,
		StoreType:     string(m.store.StoreType),
		StoreLat:      &storeLat,
		StoreLng:      &storeLng,
		Distance:      &distance,
		TriggeredAt:   now,
		Metadata: map[string]any{
			"trigger_id":         triggerID,
			"dwell_s":            dwelled.Seconds(),
			"trigger_distance_m": r.TriggerDistance,
			"mode":               string(e.mode),
			"policy":             string(e.cfg.TriggerPolicy),
		},
	})

	n := buildNotification(r, m.store, distance, triggerID)
	nctx, cancel := context.WithTimeout(ctx, e.cfg.NetworkTimeout)
	if err := e.sink.Notify(nctx, n); err != nil {
		e.logger.Warn("notification delivery failed", "reminder_id", r.ID, "error", err)
	}
	cancel()

	e.lastTrigger[r.ID] = now
	if err := e.events.RecordTrigger(ctx, r.ID, now); err != nil {
		e.logger.Warn("trigger mark write failed", "reminder_id", r.ID, "error", err)
	}

	e.logger.Info("geofence triggered",
		"reminder_id", r.ID,
		"store_id", m.store.ID,
		"store_name", m.store.Name,
		"distance_m", distance,
		"trigger_id", triggerID,
	)

	if e.cfg.TriggerPolicy != PolicySingleShot {
		return
	}

	if e.repo != nil {
		pctx, cancel := context.WithTimeout(ctx, e.cfg.NetworkTimeout)
		err := e.repo.Patch(pctx, r.ID, model.Deactivate())
		cancel()
		if err != nil {
			// Local state proceeds; the next reminder sync reconciles.
			e.logger.Warn("remote deactivate failed", "reminder_id", r.ID, "error", err)
		}
	}
	e.unregisterLocked(ctx, r.ID, "triggered")
}

// lastTriggerLocked reads the in-memory mark first, then the store.
func (e *Engine) lastTriggerLocked(ctx context.Context, reminderID string) (time.Time, bool) {
	if at, ok := e.lastTrigger[reminderID]; ok {
		return at, true
	}
	at, ok, err := e.events.LastTrigger(ctx, reminderID)
	if err != nil {
		e.logger.Warn("trigger mark read failed", "reminder_id", reminderID, "error", err)
		return time.Time{}, false
	}
	if ok {
		e.lastTrigger[reminderID] = at
	}
	return at, ok
}

// buildNotification renders the alert: store name as title, reminder title
// and memo as body.
func buildNotification(r model.Reminder, st model.Store, distance float64, triggerID string) model.Notification {
	body := r.Title
	if r.Memo != "" {
		body += "\n" + r.Memo
	}
	return model.Notification{
		Title: st.Name,
		Body:  body,
		Data: map[string]any{
			"type":        NotificationType,
			"reminder_id": r.ID,
			"store_id":    st.ID,
			"store_type":  string(st.StoreType),
			"distance_m":  distance,
			"trigger_id":  triggerID,
		},
	}
}
