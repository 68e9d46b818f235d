package engine

import (
	"context"

	"github.com/roach88/geonudge/internal/model"
)

// requestProfile asks the location source to sample under p, or to stop
// when p is nil. It returns immediately; the switch runs on its own
// goroutine, serialised by switchMu. A request superseded by a newer one
// before it starts is dropped.
//
// Must be called with e.mu held.
func (e *Engine) requestProfile(p *model.Profile) {
	select {
	case <-e.done:
		return
	default:
	}

	gen := e.profileGen.Add(1)
	e.switches.Add(1)
	go func() {
		defer e.switches.Done()
		e.switchMu.Lock()
		defer e.switchMu.Unlock()

		if e.profileGen.Load() != gen {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NetworkTimeout)
		defer cancel()

		if p == nil {
			if err := e.source.Unsubscribe(ctx); err != nil {
				e.logger.Warn("location unsubscribe failed", "error", err)
			}
			e.activeProfile.Store(nil)
			e.logger.Info("location monitoring stopped")
			return
		}

		ch, err := e.source.Subscribe(ctx, *p)
		if err != nil {
			// The next mode transition or registration retries.
			e.logger.Warn("location subscribe failed", "profile", p.Name, "error", err)
			return
		}
		profile := *p
		e.activeProfile.Store(&profile)
		e.logger.Info("location profile active",
			"profile", p.Name,
			"accuracy", p.Accuracy,
			"min_interval", p.MinInterval,
			"min_distance_m", p.MinDistanceM,
		)

		prev, done := e.lastPump, make(chan struct{})
		e.lastPump = done
		e.pumps.Add(1)
		go e.pump(ch, prev, done)
	}()
}

// pump forwards one subscription's samples into the queue until the
// stream closes or the engine shuts down. It starts forwarding only after
// the previous pump (prev, nil for the first) has drained its closed
// stream, so samples reach the queue in source order across switches.
// done is closed on return.
func (e *Engine) pump(ch <-chan model.Sample, prev <-chan struct{}, done chan<- struct{}) {
	defer e.pumps.Done()
	defer close(done)
	if prev != nil {
		select {
		case <-prev:
		case <-e.done:
			return
		}
	}
	for {
		select {
		case <-e.done:
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			if !e.queue.Enqueue(s) {
				return
			}
		}
	}
}

// startMonitoringLocked enters Coarse mode and subscribes with the coarse profile.
func (e *Engine) startMonitoringLocked() {
	if e.inert || e.monitoring {
		return
	}
	e.monitoring = true
	e.mode = model.ModeCoarse
	e.modeEnteredAt = e.clock.Now()
	e.preciseDuration = e.cfg.InitialPreciseDuration
	p := e.cfg.profile(model.ModeCoarse)
	e.requestProfile(&p)
}

// stopMonitoringLocked drops back to idle Coarse and unsubscribes.
func (e *Engine) stopMonitoringLocked() {
	if !e.monitoring {
		return
	}
	e.monitoring = false
	e.mode = model.ModeCoarse
	e.modeEnteredAt = e.clock.Now()
	e.preciseDuration = e.cfg.InitialPreciseDuration
	e.requestProfile(nil)
}
