package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
	"github.com/roach88/geonudge/internal/testutil"
)

func TestTrigger_NotificationAndEvent(t *testing.T) {
	f := newFixture(t)
	f.register(t, milkReminder)

	f.at(t, 0, 20)
	f.at(t, 10, 20)

	got := f.sink.Notifications()
	require.Len(t, got, 1)
	n := got[0]
	assert.Equal(t, "Corner Pharmacy", n.Title)
	assert.Equal(t, "buy milk\n2 litres", n.Body)
	assert.Equal(t, NotificationType, n.Data["type"])
	assert.Equal(t, "r-milk", n.Data["reminder_id"])
	assert.Equal(t, "s-pharm", n.Data["store_id"])
	assert.Equal(t, "pharmacy", n.Data["store_type"])
	assert.Equal(t, "trg-1", n.Data["trigger_id"])
	assert.InDelta(t, 20.0, n.Data["distance_m"], 0.2)

	enters := f.events(t, store.EventGeofenceEnter)
	require.Len(t, enters, 1)
	ev := enters[0]
	assert.Equal(t, "r-milk", ev.ReminderID)
	assert.Equal(t, "buy milk", ev.ReminderTitle)
	assert.Equal(t, "s-pharm", ev.StoreID)
	assert.Equal(t, "Corner Pharmacy", ev.StoreName)
	require.NotNil(t, ev.Distance)
	assert.InDelta(t, 20.0, *ev.Distance, 0.2)
	require.NotNil(t, ev.UserLat)
	require.NotNil(t, ev.StoreLat)
	assert.InDelta(t, originLat, *ev.StoreLat, 1e-9)
	assert.Equal(t, "trg-1", ev.Metadata["trigger_id"])
	assert.Equal(t, json.Number("10"), ev.Metadata["dwell_s"])
	assert.Equal(t, "single_shot", ev.Metadata["policy"])
	assert.True(t, ev.TriggeredAt.Equal(testutil.Epoch.Add(10*time.Second)))
}

func TestTrigger_BodyWithoutMemo(t *testing.T) {
	f := newFixture(t)
	r := milkReminder
	r.Memo = ""
	f.register(t, r)

	f.at(t, 0, 20)
	f.at(t, 10, 20)

	require.Len(t, f.sink.Notifications(), 1)
	assert.Equal(t, "buy milk", f.sink.Notifications()[0].Body)
}

func TestTrigger_SingleShotDeactivatesAndUnregisters(t *testing.T) {
	f := newFixture(t)
	f.register(t, milkReminder)
	require.Eventually(t, func() bool { return len(f.src.Profiles()) == 1 }, time.Second, 5*time.Millisecond)

	f.at(t, 0, 20)
	f.at(t, 10, 20)

	patches := f.repo.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, "r-milk", patches[0].ID)
	require.NotNil(t, patches[0].Patch.IsActive)
	assert.False(t, *patches[0].Patch.IsActive)

	r, _ := f.repo.Get("r-milk")
	assert.False(t, r.IsActive)
	assert.Empty(t, f.eng.Reminders())

	st := f.eng.Status()
	assert.False(t, st.Monitoring)
	assert.Equal(t, model.ModeCoarse, st.Mode)
	require.Eventually(t, func() bool { return f.src.Unsubscribes() >= 1 }, time.Second, 5*time.Millisecond)

	deleted := f.events(t, store.EventReminderDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "triggered", deleted[0].Metadata["reason"])
}

func TestTrigger_PatchFailureStillUnregisters(t *testing.T) {
	f := newFixture(t)
	f.repo.FailPatch(testutil.ErrInjected)
	f.register(t, milkReminder)

	f.at(t, 0, 20)
	f.at(t, 10, 20)

	assert.Len(t, f.sink.Notifications(), 1)
	assert.Len(t, f.repo.Patches(), 1)
	assert.Empty(t, f.eng.Reminders())

	r, _ := f.repo.Get("r-milk")
	assert.True(t, r.IsActive, "remote copy unchanged")
}

func TestTrigger_SinkFailureStillRecordsTrigger(t *testing.T) {
	f := newFixture(t)
	f.sink.Fail(testutil.ErrInjected)
	f.register(t, milkReminder)

	f.at(t, 0, 20)
	f.at(t, 10, 20)

	assert.Len(t, f.events(t, store.EventGeofenceEnter), 1)
	_, ok, err := f.store.LastTrigger(f.ctx, "r-milk")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTrigger_CooldownSurvivesReregistration(t *testing.T) {
	f := newFixture(t)
	f.register(t, milkReminder)

	f.at(t, 0, 20)
	f.at(t, 10, 20)
	require.Len(t, f.sink.Notifications(), 1)

	// The user re-enables the reminder while still standing at the store.
	f.register(t, milkReminder)
	f.at(t, 20, 20)
	f.at(t, 30, 20)
	f.at(t, 40, 20)

	assert.Len(t, f.sink.Notifications(), 1)
	assert.Len(t, f.events(t, store.EventGeofenceEnter), 1)
	assert.Len(t, f.eng.Reminders(), 1, "cooldown skip keeps the reminder")
}

func TestTrigger_CooldownPersistsAcrossEngines(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	st := openTestStore(t, clock)
	require.NoError(t, st.RecordTrigger(t.Context(), "r-milk", testutil.Epoch.Add(-30*time.Minute)))

	f := newFixture(t, withStore(st))
	f.register(t, milkReminder)

	f.at(t, 0, 20)
	f.at(t, 10, 20)
	assert.Empty(t, f.sink.Notifications(), "triggered 30 minutes ago")

	// Past the hour the next dwell fires.
	f.at(t, 31*60, 20)
	f.at(t, 31*60+10, 20)
	assert.Len(t, f.sink.Notifications(), 1)
}

func TestTrigger_RecurringPolicy(t *testing.T) {
	f := newFixture(t, withConfig(func(c *Config) { c.TriggerPolicy = PolicyRecurring }))
	f.register(t, milkReminder)

	f.at(t, 0, 20)
	f.at(t, 10, 20)
	require.Len(t, f.sink.Notifications(), 1)
	assert.Len(t, f.eng.Reminders(), 1)
	assert.Empty(t, f.repo.Patches())

	// Staying put inside the cooldown: dwell completes again but is skipped.
	f.at(t, 15, 20)
	f.at(t, 25, 20)
	assert.Len(t, f.sink.Notifications(), 1)

	f.at(t, 3600+20, 20)
	f.at(t, 3600+30, 20)
	got := f.sink.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "trg-2", got[1].Data["trigger_id"])
}

func TestTrigger_ZeroCooldown(t *testing.T) {
	f := newFixture(t, withConfig(func(c *Config) {
		c.TriggerPolicy = PolicyRecurring
		c.Cooldown = 0
	}))
	f.register(t, milkReminder)

	for sec := 0.0; sec <= 25; sec += 5 {
		f.at(t, sec, 20)
	}
	// Dwells complete at 10s and 25s.
	assert.Len(t, f.sink.Notifications(), 2)
}

func TestTrigger_WithoutRepository(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	st := openTestStore(t, clock)
	sink := testutil.NewRecordingSink()
	eng, err := New(DefaultConfig(), testutil.NewFakeLocationSource(), testutil.NewFakeDirectory(pharmacy), st, sink,
		WithClock(clock), WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close(t.Context()) })

	require.NoError(t, eng.RegisterReminder(t.Context(), milkReminder))
	for _, sec := range []int{0, 10} {
		ts := testutil.Epoch.Add(time.Duration(sec) * time.Second)
		clock.Set(ts)
		require.NoError(t, eng.OnLocationSample(t.Context(), model.Sample{Latitude: originLat, Longitude: originLng, Timestamp: ts}))
	}

	assert.Len(t, sink.Notifications(), 1)
	assert.Empty(t, eng.Reminders())
}

func TestBuildNotification(t *testing.T) {
	n := buildNotification(milkReminder, pharmacy, 12.3, "trg-9")
	assert.Equal(t, model.Notification{
		Title: "Corner Pharmacy",
		Body:  "buy milk\n2 litres",
		Data: map[string]any{
			"type":        "geofence_trigger",
			"reminder_id": "r-milk",
			"store_id":    "s-pharm",
			"store_type":  "pharmacy",
			"distance_m":  12.3,
			"trigger_id":  "trg-9",
		},
	}, n)
}
