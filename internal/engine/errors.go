package engine

import (
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
)

// validateReminder checks the invariants a registered reminder must hold.
func validateReminder(r model.Reminder) error {
	if r.ID == "" {
		return errs.New(errs.CodeEngineReminderInvalid, "reminder id is required")
	}
	if !r.StoreType.Valid() {
		return errs.New(errs.CodeEngineReminderInvalid, "unknown store type",
			errs.Field("reminder_id", r.ID), errs.Field("store_type", string(r.StoreType)))
	}
	if !(r.TriggerDistance > 0) {
		return errs.New(errs.CodeEngineReminderInvalid, "trigger distance must be positive",
			errs.Field("reminder_id", r.ID), errs.Field("trigger_distance", r.TriggerDistance))
	}
	return nil
}

func validateSample(s model.Sample) error {
	if !geo.ValidCoordinate(s.Latitude, s.Longitude) {
		return errs.New(errs.CodeEngineSampleInvalid, "invalid coordinate",
			errs.Field("lat", s.Latitude), errs.Field("lng", s.Longitude))
	}
	return nil
}

// IsInvalidReminder returns true if err rejected a reminder registration.
func IsInvalidReminder(err error) bool {
	return errs.HasCode(err, errs.CodeEngineReminderInvalid)
}

// IsInvalidSample returns true if err rejected a malformed sample.
func IsInvalidSample(err error) bool {
	return errs.HasCode(err, errs.CodeEngineSampleInvalid)
}

// IsStopped returns true if err reports a closed engine.
func IsStopped(err error) bool {
	return errs.HasCode(err, errs.CodeEngineStopped)
}
