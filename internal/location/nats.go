package location

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/roach88/geonudge/internal/bus"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

// ProfileRequest is published on the profile subject whenever the engine
// changes sampling profile. Active is false after Unsubscribe.
type ProfileRequest struct {
	Active  bool           `json:"active"`
	Profile *model.Profile `json:"profile,omitempty"`
}

// NATSSource consumes JSON-encoded model.Sample messages.
type NATSSource struct {
	conn           bus.Conn
	sampleSubject  string
	profileSubject string
	logger         *slog.Logger

	s      stream
	mu     sync.Mutex
	cancel func() error
}

func NewNATSSource(conn bus.Conn, sampleSubject, profileSubject string, logger *slog.Logger) *NATSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSource{
		conn:           conn,
		sampleSubject:  sampleSubject,
		profileSubject: profileSubject,
		logger:         logger,
	}
}

// Subscribe opens the sample subscription once and announces profile on
// every call.
func (n *NATSSource) Subscribe(_ context.Context, profile model.Profile) (<-chan model.Sample, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel == nil {
		cancel, err := n.conn.Subscribe(n.sampleSubject, n.handle)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeLocationSourceFailure, "subscribing to samples",
				errs.Field("subject", n.sampleSubject))
		}
		n.cancel = cancel
	}

	ch := n.s.open(profile)
	n.announce(ProfileRequest{Active: true, Profile: &profile})
	return ch, nil
}

func (n *NATSSource) Unsubscribe(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.s.close()
	if n.cancel == nil {
		return nil
	}
	err := n.cancel()
	n.cancel = nil
	n.announce(ProfileRequest{Active: false})
	if err != nil {
		return errs.Wrap(err, errs.CodeLocationSourceFailure, "unsubscribing from samples")
	}
	return nil
}

func (n *NATSSource) handle(subject string, data []byte) {
	var s model.Sample
	if err := json.Unmarshal(data, &s); err != nil {
		n.logger.Warn("discarding malformed sample", "subject", subject, "error", err)
		return
	}
	if _, full := n.s.send(s); full {
		n.logger.Warn("sample buffer full, dropping sample", "subject", subject)
	}
}

func (n *NATSSource) announce(req ProfileRequest) {
	if n.profileSubject == "" {
		return
	}
	data, err := json.Marshal(req)
	if err != nil {
		n.logger.Warn("encoding profile request", "error", err)
		return
	}
	if err := n.conn.Publish(n.profileSubject, data); err != nil {
		n.logger.Warn("publishing profile request failed", "subject", n.profileSubject, "error", err)
	}
}

// Profile returns the current profile and whether a subscription is active.
func (n *NATSSource) Profile() (model.Profile, bool) { return n.s.current() }
