// Package reminders mirrors the backend's reminder list into the engine.
//
// Client is the engine's ReminderRepository over the REST backend. Sync
// reconciles the engine's registration table with the remote list.
package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/roach88/geonudge/internal/backend"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

const (
	listPath = "/reminders/"

	// DefaultTriggerDistance applies when the backend omits trigger_distance.
	DefaultTriggerDistance = 30.0
)

// Client implements engine.ReminderRepository against /reminders/.
type Client struct {
	api             *backend.Client
	defaultDistance float64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaultTriggerDistance overrides DefaultTriggerDistance.
func WithDefaultTriggerDistance(m float64) ClientOption {
	return func(c *Client) {
		if m > 0 {
			c.defaultDistance = m
		}
	}
}

func NewClient(api *backend.Client, opts ...ClientOption) *Client {
	c := &Client{api: api, defaultDistance: DefaultTriggerDistance}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireReminder struct {
	ID              backend.FlexString `json:"id"`
	StoreType       string             `json:"store_type"`
	Title           string             `json:"title"`
	Memo            string             `json:"memo"`
	IsActive        *bool              `json:"is_active"`
	TriggerDistance *backend.FlexFloat `json:"trigger_distance"`
}

func (c *Client) toModel(w wireReminder) model.Reminder {
	r := model.Reminder{
		ID:              w.ID.String(),
		StoreType:       model.StoreType(w.StoreType),
		Title:           w.Title,
		Memo:            w.Memo,
		TriggerDistance: c.defaultDistance,
		IsActive:        true,
	}
	if w.IsActive != nil {
		r.IsActive = *w.IsActive
	}
	if w.TriggerDistance != nil && w.TriggerDistance.Float64() > 0 {
		r.TriggerDistance = w.TriggerDistance.Float64()
	}
	return r.Normalize()
}

// List returns every reminder. Both a bare JSON array and a paginated
// {"results": [...]} envelope are accepted.
func (c *Client) List(ctx context.Context) ([]model.Reminder, error) {
	var raw json.RawMessage
	if err := c.api.Do(ctx, http.MethodGet, listPath, nil, nil, &raw); err != nil {
		return nil, errs.Wrap(err, errs.CodeRemindersUpstreamFailure, "listing reminders")
	}

	var wire []wireReminder
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []wireReminder `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, errs.Wrap(err, errs.CodeRemindersUpstreamFailure, "decoding reminder page")
		}
		wire = page.Results
	} else if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, errs.Wrap(err, errs.CodeRemindersUpstreamFailure, "decoding reminders")
	}

	out := make([]model.Reminder, 0, len(wire))
	for _, w := range wire {
		out = append(out, c.toModel(w))
	}
	return out, nil
}

// Patch applies a partial update to one reminder.
func (c *Client) Patch(ctx context.Context, id string, patch model.ReminderPatch) error {
	path := listPath + url.PathEscape(id) + "/"
	err := c.api.Do(ctx, http.MethodPatch, path, nil, patch, nil)
	if err == nil {
		return nil
	}
	var se *backend.StatusError
	if errors.As(err, &se) && se.NotFound() {
		return errs.Wrap(err, errs.CodeRemindersNotFound, "patching reminder", errs.Field("reminder_id", id))
	}
	return errs.Wrap(err, errs.CodeRemindersUpstreamFailure, "patching reminder", errs.Field("reminder_id", id))
}
