package engine

import (
	"context"
	"sort"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
)

// RegisterReminder upserts a reminder keyed by id. Registering the first
// active reminder starts Coarse monitoring. Registering an inactive reminder
// removes any local copy.
func (e *Engine) RegisterReminder(ctx context.Context, r model.Reminder) error {
	r = r.Normalize()
	if r.ID == "" {
		return errs.New(errs.CodeEngineReminderInvalid, "reminder id is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkPermissionsLocked(ctx)

	if !r.IsActive {
		if _, ok := e.reminders[r.ID]; ok {
			e.unregisterLocked(ctx, r.ID, "deactivated")
		}
		return nil
	}
	if err := validateReminder(r); err != nil {
		return err
	}

	prev, existed := e.reminders[r.ID]
	e.reminders[r.ID] = r

	if existed {
		if prev.StoreType != r.StoreType {
			// The dwell belongs to a store of the old type.
			e.clearDwellLocked(ctx, r.ID)
		}
		e.logger.Debug("reminder updated", "reminder_id", r.ID, "trigger_distance", r.TriggerDistance)
		return nil
	}

	e.logEventLocked(ctx, store.EventRecord{
		EventType:     store.EventReminderCreated,
		ReminderID:    r.ID,
		ReminderTitle: r.Title,
		StoreType:     string(r.StoreType),
		Metadata: map[string]any{
			"trigger_distance": r.TriggerDistance,
		},
	})
	e.logger.Info("reminder registered",
		"reminder_id", r.ID,
		"store_type", r.StoreType,
		"trigger_distance", r.TriggerDistance,
	)

	e.startMonitoringLocked()
	return nil
}

// UnregisterReminder removes a reminder and any dwell state referencing it.
// When no reminders remain, monitoring stops.
func (e *Engine) UnregisterReminder(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.reminders[id]; !ok {
		return errs.New(errs.CodeEngineReminderNotFound, "reminder not registered",
			errs.Field("reminder_id", id))
	}
	e.unregisterLocked(ctx, id, "unregistered")
	return nil
}

// Reminders returns the registered reminders ordered by id.
func (e *Engine) Reminders() []model.Reminder {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Reminder, 0, len(e.reminders))
	for _, id := range e.reminderIDsLocked() {
		out = append(out, e.reminders[id])
	}
	return out
}

func (e *Engine) unregisterLocked(ctx context.Context, id, reason string) {
	r := e.reminders[id]
	delete(e.reminders, id)
	e.clearDwellLocked(ctx, id)

	e.logEventLocked(ctx, store.EventRecord{
		EventType:     store.EventReminderDeleted,
		ReminderID:    id,
		ReminderTitle: r.Title,
		StoreType:     string(r.StoreType),
		Metadata:      map[string]any{"reason": reason},
	})
	e.logger.Info("reminder unregistered", "reminder_id", id, "reason", reason)

	if len(e.reminders) == 0 {
		e.stopMonitoringLocked()
	}
}

// reminderIDsLocked returns registered ids in sorted order so evaluation is
// deterministic.
func (e *Engine) reminderIDsLocked() []string {
	ids := make([]string, 0, len(e.reminders))
	for id := range e.reminders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
