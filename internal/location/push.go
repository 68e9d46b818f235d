package location

import (
	"context"
	"log/slog"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

// Push is a source fed by callers, typically the HTTP sample endpoint.
type Push struct {
	s      stream
	logger *slog.Logger
}

func NewPush(logger *slog.Logger) *Push {
	if logger == nil {
		logger = slog.Default()
	}
	return &Push{logger: logger}
}

func (p *Push) Subscribe(_ context.Context, profile model.Profile) (<-chan model.Sample, error) {
	ch := p.s.open(profile)
	p.logger.Debug("push source subscribed", "profile", profile.Name)
	return ch, nil
}

func (p *Push) Unsubscribe(context.Context) error {
	if p.s.close() {
		p.logger.Debug("push source unsubscribed")
	}
	return nil
}

// Push hands one sample to the subscriber. It fails when nothing is
// subscribed or the subscriber's buffer is full.
func (p *Push) Push(sample model.Sample) error {
	ok, full := p.s.send(sample)
	switch {
	case !ok:
		return errs.New(errs.CodeLocationNotMonitoring, "no active location subscription")
	case full:
		return errs.New(errs.CodeLocationSourceFailure, "sample buffer full")
	}
	return nil
}

// Profile returns the profile the device should sample with and whether a
// subscription is active.
func (p *Push) Profile() (model.Profile, bool) { return p.s.current() }

// Dropped returns the number of samples lost to a full buffer.
func (p *Push) Dropped() int { return p.s.droppedCount() }
