package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/roach88/geonudge/internal/bus"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

// NATSSink publishes each notification as a JSON Alert. When PerReminder is
// set, the alert is also published on "<subject>.<reminder_id>" so clients
// can follow a single reminder.
type NATSSink struct {
	conn        bus.Conn
	subject     string
	perReminder bool
	now         func() time.Time
}

func NewNATSSink(conn bus.Conn, subject string, perReminder bool) *NATSSink {
	return &NATSSink{conn: conn, subject: subject, perReminder: perReminder, now: time.Now}
}

func (s *NATSSink) Notify(_ context.Context, n model.Notification) error {
	alert := NewAlert(n, s.now())
	data, err := json.Marshal(alert)
	if err != nil {
		return errs.Wrap(err, errs.CodeNotifyPublishFailure, "encoding alert")
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return errs.Wrap(err, errs.CodeNotifyPublishFailure, "publishing alert", errs.Field("subject", s.subject))
	}
	if s.perReminder && alert.ReminderID != "" {
		subject := s.subject + "." + alert.ReminderID
		if err := s.conn.Publish(subject, data); err != nil {
			return errs.Wrap(err, errs.CodeNotifyPublishFailure, "publishing alert", errs.Field("subject", subject))
		}
	}
	return nil
}
