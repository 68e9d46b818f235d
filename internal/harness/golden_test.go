package harness

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geonudge/internal/model"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"pharmacy_visit", "walk_past"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRender(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Seq: 1, Type: "REMINDER_CREATED", ReminderID: "r-1", Metadata: map[string]any{"trigger_distance": json.Number("30")}},
		{Seq: 2, Offset: 90 * time.Second, Type: "GEOFENCE_ENTER", ReminderID: "r-1", StoreID: "s-1", Distance: dist(12.34),
			Metadata: map[string]any{"trigger_id": "trg-1", "dwell_s": json.Number("10")}},
	}
	result.Notifications = []model.Notification{
		{Title: "Lawson", Body: "milk\n2L", Data: map[string]any{"trigger_id": "trg-1"}},
	}
	result.Final = FinalState{Mode: "precise", Monitoring: true, ActiveReminders: 1}

	want := `scenario: demo
events:
  1 +0s REMINDER_CREATED reminder=r-1 {trigger_distance=30}
  2 +1m30s GEOFENCE_ENTER reminder=r-1 store=s-1 distance=12.3 {dwell_s=10 trigger_id=trg-1}
notifications:
  1 Lawson | milk / 2L | trg-1
final: mode=precise monitoring=true inert=false reminders=1 dwells=0
`
	assert.Equal(t, want, string(Render("demo", result)))
}

func TestRender_Empty(t *testing.T) {
	out := string(Render("empty", NewResult()))
	assert.Equal(t, "scenario: empty\nevents:\nnotifications:\nfinal: mode= monitoring=false inert=false reminders=0 dwells=0\n", out)
}
