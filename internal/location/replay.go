package location

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/geonudge/internal/model"
)

// Replay plays a Track in (scaled) real time. Playback starts on the first
// Subscribe and continues across re-subscriptions; points emitted while
// unsubscribed are lost, as they would be on a device with location off.
type Replay struct {
	track  *Track
	rate   float64
	now    func() time.Time
	logger *slog.Logger

	s        stream
	once     sync.Once
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// ReplayOption configures a Replay.
type ReplayOption func(*Replay)

// WithRate speeds playback up (>1) or slows it down (<1).
func WithRate(rate float64) ReplayOption {
	return func(r *Replay) {
		if rate > 0 {
			r.rate = rate
		}
	}
}

// WithNow sets the clock used to timestamp emitted samples.
func WithNow(now func() time.Time) ReplayOption {
	return func(r *Replay) { r.now = now }
}

func WithLogger(l *slog.Logger) ReplayOption {
	return func(r *Replay) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewReplay(track *Track, opts ...ReplayOption) *Replay {
	r := &Replay{
		track:  track,
		rate:   1,
		now:    time.Now,
		logger: slog.Default(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Replay) Subscribe(_ context.Context, profile model.Profile) (<-chan model.Sample, error) {
	ch := r.s.open(profile)
	r.once.Do(func() { go r.play() })
	return ch, nil
}

func (r *Replay) Unsubscribe(context.Context) error {
	r.s.close()
	return nil
}

// Done is closed when playback has finished or been stopped.
func (r *Replay) Done() <-chan struct{} { return r.done }

// Stop ends playback early.
func (r *Replay) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Replay) play() {
	defer close(r.done)

	var prev time.Duration
	for i, p := range r.track.Points {
		if wait := time.Duration(float64(p.At-prev) / r.rate); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-r.stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		prev = p.At

		s := r.track.Sample(p, time.Time{})
		s.Timestamp = r.now()
		if ok, full := r.s.send(s); !ok {
			r.logger.Debug("replay point skipped, not subscribed", "index", i)
		} else if full {
			r.logger.Warn("replay point dropped, buffer full", "index", i)
		}
	}
	r.logger.Info("track replay finished", "points", len(r.track.Points))
}

// Profile returns the current profile and whether a subscription is active.
func (r *Replay) Profile() (model.Profile, bool) { return r.s.current() }
