package engine

import (
	"context"

	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
)

// OnLocationSample is the single step that drives the engine.
//
// Order of work: validate, drop stale, record location, speed gate, store
// cache refresh, then evaluate (mode transition followed by dwell and
// trigger decisions). A malformed sample returns an engine.sample.invalid
// error and mutates nothing. Collaborator failures are logged and absorbed.
func (e *Engine) OnLocationSample(ctx context.Context, s model.Sample) error {
	if err := validateSample(s); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if s.Timestamp.IsZero() {
		s.Timestamp = e.clock.Now()
	}

	prev := e.current
	if prev != nil && s.Timestamp.Before(prev.Timestamp) {
		e.logger.Debug("stale sample dropped",
			"timestamp", s.Timestamp,
			"previous", prev.Timestamp,
		)
		return nil
	}

	var (
		speed   float64
		speedOK bool
	)
	if prev != nil {
		speed, speedOK = geo.Speed(prev.Latitude, prev.Longitude, prev.Timestamp,
			s.Latitude, s.Longitude, s.Timestamp)
	}
	inTransit := speedOK && speed > e.cfg.MaxWalkingSpeed

	current := s
	e.current = &current
	e.recordLocationLocked(ctx, s, speed, speedOK, inTransit)

	if inTransit {
		e.logger.Debug("speed gate: in transit, skipping evaluation",
			"speed_mps", speed,
			"limit_mps", e.cfg.MaxWalkingSpeed,
		)
		return nil
	}

	if len(e.reminders) == 0 {
		return nil
	}
	e.checkPermissionsLocked(ctx)
	if e.inert {
		return nil
	}

	now := e.clock.Now()
	e.refreshStoresLocked(ctx, now)
	e.evaluate(ctx, now)
	return nil
}

// recordLocationLocked appends the sample to location history, tagged by
// activity. Reported speed wins over inferred speed.
func (e *Engine) recordLocationLocked(ctx context.Context, s model.Sample, inferred float64, inferredOK, inTransit bool) {
	if !e.cfg.RecordLocations {
		return
	}

	activity := model.ActivityWalking
	switch {
	case inTransit:
		activity = model.ActivityInTransit
	case s.Speed != nil && *s.Speed < e.cfg.StationarySpeed:
		activity = model.ActivityStationary
	case s.Speed == nil && inferredOK && inferred < e.cfg.StationarySpeed:
		activity = model.ActivityStationary
	}

	rec := store.LocationRecord{
		Lat:       s.Latitude,
		Lng:       s.Longitude,
		Accuracy:  s.Accuracy,
		Altitude:  s.Altitude,
		Speed:     s.Speed,
		Heading:   s.Heading,
		Timestamp: s.Timestamp,
		Activity:  activity,
	}
	if rec.Speed == nil && inferredOK {
		v := inferred
		rec.Speed = &v
	}
	if _, err := e.events.LogLocation(ctx, rec); err != nil {
		e.logger.Warn("location history write failed", "error", err)
	}
}
