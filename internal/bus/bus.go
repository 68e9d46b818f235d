// Package bus is the narrow publish/subscribe surface geonudge needs from
// NATS. The location source consumes samples through it and the NATS sink
// publishes alerts through it.
package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Handler receives one message payload.
type Handler func(subject string, data []byte)

// Conn publishes and subscribes raw payloads.
type Conn interface {
	Publish(subject string, data []byte) error
	// Subscribe registers h on subject. The returned func cancels it.
	Subscribe(subject string, h Handler) (func() error, error)
}

// NATS adapts a *nats.Conn to Conn.
type NATS struct {
	nc *nats.Conn
}

// Connect dials url with reconnects enabled and disconnect/reconnect logging.
func Connect(url, name string, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATS{nc: nc}, nil
}

// Wrap adapts an existing connection.
func Wrap(nc *nats.Conn) *NATS { return &NATS{nc: nc} }

func (n *NATS) Publish(subject string, data []byte) error {
	return n.nc.Publish(subject, data)
}

func (n *NATS) Subscribe(subject string, h Handler) (func() error, error) {
	sub, err := n.nc.Subscribe(subject, func(m *nats.Msg) { h(m.Subject, m.Data) })
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.nc.Drain()
}
