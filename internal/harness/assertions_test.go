package harness

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
	"github.com/roach88/geonudge/internal/testutil"
)

func dist(v float64) *float64 { return &v }

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: "REMINDER_CREATED", ReminderID: "r-1", Metadata: map[string]any{"trigger_distance": json.Number("30")}},
		{Seq: 2, Type: "STORES_REFRESHED", Metadata: map[string]any{"count": json.Number("2"), "reason": "initial"}},
		{Seq: 3, Type: "MODE_CHANGE", Metadata: map[string]any{"from": "coarse", "to": "precise"}},
		{Seq: 4, Offset: 10 * time.Second, Type: "GEOFENCE_ENTER", ReminderID: "r-1", StoreID: "s-1", Distance: dist(20),
			Metadata: map[string]any{"trigger_id": "trg-1", "dwell_s": json.Number("10")}},
		{Seq: 5, Offset: 10 * time.Second, Type: "REMINDER_DELETED", ReminderID: "r-1", Metadata: map[string]any{"reason": "triggered"}},
	}
}

func TestAssertEventContains_Found(t *testing.T) {
	err := assertEventContains(sampleTrace(), Assertion{
		Type:   AssertEventContains,
		Event:  "GEOFENCE_ENTER",
		Fields: map[string]any{"reminder_id": "r-1", "distance": 20, "dwell_s": 10, "trigger_id": "trg-1"},
	})
	assert.NoError(t, err)
}

func TestAssertEventContains_NoFields(t *testing.T) {
	err := assertEventContains(sampleTrace(), Assertion{Type: AssertEventContains, Event: "MODE_CHANGE"})
	assert.NoError(t, err)
}

func TestAssertEventContains_FieldMismatch(t *testing.T) {
	err := assertEventContains(sampleTrace(), Assertion{
		Type:   AssertEventContains,
		Event:  "GEOFENCE_ENTER",
		Fields: map[string]any{"distance": 25},
	})
	require.Error(t, err)

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertEventContains, aerr.Type)
	assert.Contains(t, aerr.Expected, "distance=25")
	assert.Equal(t, "not found in trace", aerr.Actual)
	assert.Contains(t, err.Error(), "[4] +10s GEOFENCE_ENTER")
}

func TestAssertEventContains_MissingField(t *testing.T) {
	err := assertEventContains(sampleTrace(), Assertion{
		Type:   AssertEventContains,
		Event:  "REMINDER_DELETED",
		Fields: map[string]any{"store_id": "s-1"},
	})
	assert.Error(t, err)
}

func TestAssertEventOrder(t *testing.T) {
	tests := []struct {
		name    string
		events  []string
		wantErr string
	}{
		{"in order", []string{"REMINDER_CREATED", "GEOFENCE_ENTER", "REMINDER_DELETED"}, ""},
		{"gaps allowed", []string{"STORES_REFRESHED", "REMINDER_DELETED"}, ""},
		{"wrong order", []string{"GEOFENCE_ENTER", "MODE_CHANGE"}, "should be before"},
		{"missing", []string{"MODE_CHANGE", "PRECISE_EXTENDED"}, "missing event: PRECISE_EXTENDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertEventOrder(sampleTrace(), Assertion{Type: AssertEventOrder, Events: tt.events})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertEventCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertEventCount(trace, Assertion{Event: "GEOFENCE_ENTER", Count: 1}))
	assert.NoError(t, assertEventCount(trace, Assertion{Event: "PRECISE_EXTENDED", Count: 0}))
	assert.NoError(t, assertEventCount(trace, Assertion{
		Event: "REMINDER_DELETED", Count: 1, Fields: map[string]any{"reason": "triggered"},
	}))
	assert.NoError(t, assertEventCount(trace, Assertion{
		Event: "REMINDER_DELETED", Count: 0, Fields: map[string]any{"reason": "unregistered"},
	}))

	err := assertEventCount(trace, Assertion{Event: "GEOFENCE_ENTER", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences of GEOFENCE_ENTER")
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
}

func TestAssertNotificationCount(t *testing.T) {
	result := NewResult()
	result.Notifications = []model.Notification{{Title: "Lawson"}}

	assert.NoError(t, assertNotificationCount(result, Assertion{Count: 1}))
	assert.Error(t, assertNotificationCount(result, Assertion{Count: 0}))
}

func TestAssertEngineState(t *testing.T) {
	final := FinalState{Mode: "precise", Monitoring: true, ActiveReminders: 2}

	assert.NoError(t, assertEngineState(final, Assertion{Expect: map[string]any{
		"mode": "precise", "monitoring": true, "active_reminders": 2, "pending_dwells": 0,
	}}))

	err := assertEngineState(final, Assertion{Expect: map[string]any{"mode": "coarse"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode = coarse")

	err = assertEngineState(final, Assertion{Expect: map[string]any{"speed": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known fields")
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:", store.WithNow(func() time.Time { return testutil.Epoch }))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAssertFinalState(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	_, err := st.UpdateGeofenceState(ctx, "r-1", "s-1", store.TransitionEnter, testutil.Epoch)
	require.NoError(t, err)
	require.NoError(t, st.RecordTrigger(ctx, "r-1", testutil.Epoch))

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name: "match",
			assertion: Assertion{Table: "geofence_states", Where: map[string]any{"reminder_id": "r-1"},
				Expect: map[string]any{"state": "ENTERED", "store_id": "s-1"}},
		},
		{
			name: "integer column",
			assertion: Assertion{Table: "trigger_marks", Where: map[string]any{"reminder_id": "r-1"},
				Expect: map[string]any{"last_triggered_at": testutil.Epoch.UnixMilli()}},
		},
		{
			name: "value mismatch",
			assertion: Assertion{Table: "geofence_states", Where: map[string]any{"reminder_id": "r-1"},
				Expect: map[string]any{"state": "EXITED"}},
			wantErr: `field "state" = EXITED`,
		},
		{
			name: "row not found",
			assertion: Assertion{Table: "geofence_states", Where: map[string]any{"reminder_id": "r-9"},
				Expect: map[string]any{"state": "ENTERED"}},
			wantErr: "row not found",
		},
		{
			name: "unknown column",
			assertion: Assertion{Table: "geofence_states", Where: map[string]any{"reminder_id": "r-1"},
				Expect: map[string]any{"colour": "red"}},
			wantErr: `field "colour" to exist`,
		},
		{
			name:      "bad table name",
			assertion: Assertion{Table: "geofence_states; DROP TABLE x", Expect: map[string]any{"state": "ENTERED"}},
			wantErr:   "invalid table name",
		},
		{
			name: "bad column name",
			assertion: Assertion{Table: "geofence_states", Where: map[string]any{"1=1 OR reminder_id": "r-1"},
				Expect: map[string]any{"state": "ENTERED"}},
			wantErr: "invalid column name",
		},
		{
			name:      "missing table",
			assertion: Assertion{Table: "nope", Expect: map[string]any{"state": "ENTERED"}},
			wantErr:   "query error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertFinalState_Ambiguous(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	_, err := st.UpdateGeofenceState(ctx, "r-1", "s-1", store.TransitionEnter, testutil.Epoch)
	require.NoError(t, err)
	_, err = st.UpdateGeofenceState(ctx, "r-1", "s-2", store.TransitionEnter, testutil.Epoch)
	require.NoError(t, err)

	err = assertFinalState(ctx, st, Assertion{
		Table:  "geofence_states",
		Where:  map[string]any{"reminder_id": "r-1"},
		Expect: map[string]any{"state": "ENTERED"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple rows matched")
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"store_id": "s-1", "reminder_id": "r-1", "synced": true})
	require.NoError(t, err)
	assert.Equal(t, "reminder_id = ? AND store_id = ? AND synced = ?", sql)
	assert.Equal(t, []any{"r-1", "s-1", 1}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestLooseEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"int vs int64", 3, int64(3), true},
		{"int vs json number", 30, json.Number("30"), true},
		{"float vs json number", 20.5, json.Number("20.5"), true},
		{"int vs float", 20, 20.0, true},
		{"bool vs sqlite int", true, int64(1), true},
		{"bool vs sqlite zero", true, int64(0), false},
		{"string", "ENTERED", "ENTERED", true},
		{"string vs bytes", "ENTERED", []byte("ENTERED"), true},
		{"string vs number", "30", int64(30), false},
		{"number mismatch", 30, json.Number("31"), false},
		{"nil both", nil, nil, true},
		{"nil one side", nil, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looseEqual(tt.expected, tt.actual))
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertEventCount, Event: "GEOFENCE_ENTER", Count: 1},
		{Type: AssertEventCount, Event: "MODE_CHANGE", Count: 5},
		{Type: AssertFinalState, Table: "event_logs", Expect: map[string]any{"id": 1}},
		{Type: "bogus"},
	}, nil)

	require.Len(t, failures, 3)
	assert.Contains(t, failures[0], "event_count")
	assert.Contains(t, failures[1], "final_state requires database context")
	assert.Contains(t, failures[2], `unknown assertion type "bogus"`)
}
