package harness

import (
	"fmt"
	"time"

	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
)

// TraceEvent is one logged engine event, relative to the scenario start.
type TraceEvent struct {
	Seq        int            `json:"seq"`
	Offset     time.Duration  `json:"offset"`
	Type       string         `json:"type"`
	ReminderID string         `json:"reminder_id,omitempty"`
	StoreID    string         `json:"store_id,omitempty"`
	StoreName  string         `json:"store_name,omitempty"`
	Distance   *float64       `json:"distance,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func traceEvent(seq int, start time.Time, rec store.EventRecord) TraceEvent {
	return TraceEvent{
		Seq:        seq,
		Offset:     rec.TriggeredAt.Sub(start),
		Type:       string(rec.EventType),
		ReminderID: rec.ReminderID,
		StoreID:    rec.StoreID,
		StoreName:  rec.StoreName,
		Distance:   rec.Distance,
		Metadata:   rec.Metadata,
	}
}

// Field looks up a column or metadata key. Columns win.
func (e TraceEvent) Field(key string) (any, bool) {
	switch key {
	case "reminder_id":
		return e.ReminderID, e.ReminderID != ""
	case "store_id":
		return e.StoreID, e.StoreID != ""
	case "store_name":
		return e.StoreName, e.StoreName != ""
	case "distance":
		if e.Distance == nil {
			return nil, false
		}
		return *e.Distance, true
	}
	v, ok := e.Metadata[key]
	return v, ok
}

func (e TraceEvent) String() string {
	return fmt.Sprintf("[%d] +%s %s", e.Seq, e.Offset, e.Type)
}

// FinalState is the engine status captured after the last step.
type FinalState struct {
	Mode            string `json:"mode"`
	Monitoring      bool   `json:"monitoring"`
	Inert           bool   `json:"inert"`
	ActiveReminders int    `json:"active_reminders"`
	PendingDwells   int    `json:"pending_dwells"`
	CachedStores    int    `json:"cached_stores"`
}

// values exposes the state by the keys engine_state assertions use.
func (f FinalState) values() map[string]any {
	return map[string]any{
		"mode":             f.Mode,
		"monitoring":       f.Monitoring,
		"inert":            f.Inert,
		"active_reminders": f.ActiveReminders,
		"pending_dwells":   f.PendingDwells,
		"cached_stores":    f.CachedStores,
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every logged event in order.
	Trace []TraceEvent `json:"trace"`

	// Notifications holds every notification handed to the sink, including
	// ones the sink failed to deliver.
	Notifications []model.Notification `json:"notifications"`

	Final FinalState `json:"final"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:          true,
		Trace:         []TraceEvent{},
		Notifications: []model.Notification{},
		Errors:        []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
