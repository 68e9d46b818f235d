package notify

import (
	"fmt"
	"time"

	"github.com/roach88/geonudge/internal/model"
)

// Alert is the wire form of a notification on NATS and in Redis.
type Alert struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	ReminderID string         `json:"reminder_id,omitempty"`
	StoreID    string         `json:"store_id,omitempty"`
	TriggerID  string         `json:"trigger_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	SentAt     time.Time      `json:"sent_at"`
}

// NewAlert flattens the well-known data keys of n.
func NewAlert(n model.Notification, at time.Time) Alert {
	return Alert{
		Type:       dataString(n.Data, "type"),
		Title:      n.Title,
		Body:       n.Body,
		ReminderID: dataString(n.Data, "reminder_id"),
		StoreID:    dataString(n.Data, "store_id"),
		TriggerID:  dataString(n.Data, "trigger_id"),
		Data:       n.Data,
		SentAt:     at.UTC(),
	}
}

func dataString(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
