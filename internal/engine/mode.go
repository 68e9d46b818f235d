package engine

import (
	"context"
	"math"
	"time"

	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
)

// modeState is the monitoring mode with its timing.
type modeState struct {
	Mode            model.Mode
	EnteredAt       time.Time
	PreciseDuration time.Duration
}

type modeTransition int

const (
	transitionNone modeTransition = iota
	transitionToPrecise
	transitionToCoarse
	transitionExtended
)

func (t modeTransition) String() string {
	switch t {
	case transitionToPrecise:
		return "to_precise"
	case transitionToCoarse:
		return "to_coarse"
	case transitionExtended:
		return "extended"
	default:
		return "none"
	}
}

// nextMode applies the mode state machine to the nearest matching-store
// distance (+Inf when none).
//
//	Coarse  -> Precise  nearest <= enter threshold
//	Precise -> Coarse   window elapsed and nearest > exit threshold
//	Precise -> Precise  window elapsed and nearest <= exit threshold;
//	                    window grows by PreciseGrowth up to MaxPreciseDuration
func nextMode(cfg Config, st modeState, nearest float64, now time.Time) (modeState, modeTransition) {
	switch st.Mode {
	case model.ModeCoarse:
		if nearest <= cfg.EnterThresholdM {
			return modeState{
				Mode:            model.ModePrecise,
				EnteredAt:       now,
				PreciseDuration: cfg.InitialPreciseDuration,
			}, transitionToPrecise
		}

	case model.ModePrecise:
		if now.Sub(st.EnteredAt) < st.PreciseDuration {
			return st, transitionNone
		}
		if nearest > cfg.ExitThresholdM {
			return modeState{
				Mode:            model.ModeCoarse,
				EnteredAt:       now,
				PreciseDuration: cfg.InitialPreciseDuration,
			}, transitionToCoarse
		}
		grown := time.Duration(float64(st.PreciseDuration) * cfg.PreciseGrowth)
		if grown > cfg.MaxPreciseDuration {
			grown = cfg.MaxPreciseDuration
		}
		return modeState{
			Mode:            model.ModePrecise,
			EnteredAt:       now,
			PreciseDuration: grown,
		}, transitionExtended
	}
	return st, transitionNone
}

// stepModeLocked runs the state machine, logs the transition and requests
// the matching sampling profile.
func (e *Engine) stepModeLocked(ctx context.Context, now time.Time, nearest float64) {
	from := modeState{Mode: e.mode, EnteredAt: e.modeEnteredAt, PreciseDuration: e.preciseDuration}
	to, tr := nextMode(e.cfg, from, nearest, now)
	if tr == transitionNone {
		return
	}

	e.mode = to.Mode
	e.modeEnteredAt = to.EnteredAt
	e.preciseDuration = to.PreciseDuration

	meta := map[string]any{
		"from":               string(from.Mode),
		"to":                 string(to.Mode),
		"precise_duration_s": to.PreciseDuration.Seconds(),
	}
	if !math.IsInf(nearest, 1) {
		meta["nearest_m"] = round1(nearest)
	}

	if tr == transitionExtended {
		e.logEventLocked(ctx, store.EventRecord{EventType: store.EventPreciseExtended, Metadata: meta})
		e.logger.Info("precise mode extended",
			"precise_duration", to.PreciseDuration,
			"nearest_m", nearest,
		)
		return
	}

	e.logEventLocked(ctx, store.EventRecord{EventType: store.EventModeChange, Metadata: meta})
	e.logger.Info("monitoring mode changed",
		"from", from.Mode,
		"to", to.Mode,
		"nearest_m", nearest,
	)
	if e.monitoring {
		p := e.cfg.profile(to.Mode)
		e.requestProfile(&p)
	}
}
