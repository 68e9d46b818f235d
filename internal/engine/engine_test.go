package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
	"github.com/roach88/geonudge/internal/testutil"
)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExitThresholdM = 50
	cfg.DwellRequired = 0

	st := openTestStore(t, testutil.NewFakeClock(testutil.Epoch))
	_, err := New(cfg, testutil.NewFakeLocationSource(), testutil.NewFakeDirectory(), st, testutil.NewRecordingSink())
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigValidateInvalidValue))
	assert.Contains(t, err.Error(), "exit_threshold_m")
	assert.Contains(t, err.Error(), "dwell_required")
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(DefaultConfig(), nil, testutil.NewFakeDirectory(), nil, testutil.NewRecordingSink())
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestDefaultConfig_Valid(t *testing.T) {
	assert.Empty(t, DefaultConfig().Validate())
}

func TestRegisterReminder_FirstSubscribesCoarse(t *testing.T) {
	f := newFixture(t)
	f.register(t, milkReminder)

	require.Eventually(t, func() bool { return len(f.src.Profiles()) == 1 }, time.Second, 5*time.Millisecond)
	p, _ := f.src.LastProfile()
	assert.Equal(t, DefaultConfig().CoarseProfile, p)

	st := f.eng.Status()
	assert.True(t, st.Monitoring)
	assert.Equal(t, model.ModeCoarse, st.Mode)
	assert.Equal(t, 1, st.ActiveReminders)
	require.Eventually(t, func() bool { return f.eng.Status().Profile == "coarse" }, time.Second, 5*time.Millisecond)
}

func TestRegisterReminder_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.register(t, milkReminder)
	require.Eventually(t, func() bool { return len(f.src.Profiles()) == 1 }, time.Second, 5*time.Millisecond)

	updated := milkReminder
	updated.TriggerDistance = 80
	f.register(t, updated)
	f.register(t, updated)

	reminders := f.eng.Reminders()
	require.Len(t, reminders, 1)
	assert.Equal(t, 80.0, reminders[0].TriggerDistance)
	assert.Len(t, f.events(t, store.EventReminderCreated), 1)
	assert.Len(t, f.src.Profiles(), 1, "no resubscribe on update")
}

func TestRegisterReminder_NormalizesText(t *testing.T) {
	f := newFixture(t)
	r := milkReminder
	r.ID = "  r-milk  "
	r.Title = "  buy milk "
	f.register(t, r)

	reminders := f.eng.Reminders()
	require.Len(t, reminders, 1)
	assert.Equal(t, "r-milk", reminders[0].ID)
	assert.Equal(t, "buy milk", reminders[0].Title)
}

func TestRegisterReminder_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		mut  func(*model.Reminder)
	}{
		{"empty id", func(r *model.Reminder) { r.ID = "" }},
		{"unknown store type", func(r *model.Reminder) { r.StoreType = "bakery" }},
		{"zero trigger distance", func(r *model.Reminder) { r.TriggerDistance = 0 }},
		{"negative trigger distance", func(r *model.Reminder) { r.TriggerDistance = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := milkReminder
			tt.mut(&r)
			err := f.eng.RegisterReminder(f.ctx, r)
			require.Error(t, err)
			assert.True(t, IsInvalidReminder(err))
		})
	}
	assert.Empty(t, f.eng.Reminders())
	assert.False(t, f.eng.Status().Monitoring)
}

func TestRegisterReminder_InactiveRemoves(t *testing.T) {
	f := newFixture(t)
	f.register(t, milkReminder)

	off := milkReminder
	off.IsActive = false
	f.register(t, off)

	assert.Empty(t, f.eng.Reminders())
	assert.False(t, f.eng.Status().Monitoring)
	deleted := f.events(t, store.EventReminderDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "deactivated", deleted[0].Metadata["reason"])
}

func TestRegisterReminder_InactiveUnknownIsNoop(t *testing.T) {
	f := newFixture(t)
	off := milkReminder
	off.IsActive = false
	f.register(t, off)

	assert.Empty(t, f.eng.Reminders())
	assert.Empty(t, f.events(t))
}

func TestRegisterReminder_StoreTypeChangeClearsDwell(t *testing.T) {
	f := newFixture(t)
	f.register(t, milkReminder)
	f.at(t, 0, 20)
	require.Equal(t, 1, f.eng.Status().PendingDwells)

	changed := milkReminder
	changed.StoreType = model.StoreTypeConvenience
	f.register(t, changed)

	assert.Equal(t, 0, f.eng.Status().PendingDwells)
	f.at(t, 10, 20)
	assert.Empty(t, f.sink.Notifications())
}

func TestUnregisterReminder_StopsMonitoring(t *testing.T) {
	f := newFixture(t)
	f.register(t, milkReminder)
	require.Eventually(t, func() bool { return len(f.src.Profiles()) == 1 }, time.Second, 5*time.Millisecond)
	f.at(t, 0, 20)

	require.NoError(t, f.eng.UnregisterReminder(f.ctx, milkReminder.ID))

	st := f.eng.Status()
	assert.False(t, st.Monitoring)
	assert.Equal(t, 0, st.ActiveReminders)
	assert.Equal(t, 0, st.PendingDwells)
	require.Eventually(t, func() bool { return f.src.Unsubscribes() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.eng.Status().Profile == "" }, time.Second, 5*time.Millisecond)

	gs, err := f.store.GeofenceState(f.ctx, store.BindingKey(milkReminder.ID, pharmacy.ID))
	require.NoError(t, err)
	assert.Equal(t, store.StatusExited, gs.State)
}

func TestUnregisterReminder_KeepsMonitoringWhileOthersRemain(t *testing.T) {
	f := newFixture(t)
	other := milkReminder
	other.ID = "r-soap"
	f.register(t, milkReminder)
	f.register(t, other)

	require.NoError(t, f.eng.UnregisterReminder(f.ctx, milkReminder.ID))
	assert.True(t, f.eng.Status().Monitoring)
	assert.Equal(t, []model.Reminder{other}, f.eng.Reminders())
}

func TestUnregisterReminder_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.eng.UnregisterReminder(f.ctx, "missing")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, errs.CodeEngineReminderNotFound, errs.CodeOf(err))
}

func TestReminders_SortedByID(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"c", "a", "b"} {
		r := milkReminder
		r.ID = id
		f.register(t, r)
	}

	var ids []string
	for _, r := range f.eng.Reminders() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestInert_LocationDenied(t *testing.T) {
	f := newFixture(t, withPerms(StaticPermissions{Location: false, Notifications: true}))
	f.register(t, milkReminder)

	f.at(t, 0, 20)
	f.at(t, 10, 20)

	st := f.eng.Status()
	assert.True(t, st.Inert)
	assert.Equal(t, "location permission denied", st.InertReason)
	assert.False(t, st.Monitoring)
	assert.Equal(t, 1, st.ActiveReminders, "registrations are kept")
	assert.NotNil(t, st.CurrentLocation)

	assert.Empty(t, f.src.Profiles())
	assert.Empty(t, f.dir.Queries())
	assert.Empty(t, f.sink.Notifications())
}

func TestInert_NotificationsDenied(t *testing.T) {
	f := newFixture(t, withPerms(StaticPermissions{Location: true, Notifications: false}))
	f.register(t, milkReminder)

	st := f.eng.Status()
	assert.True(t, st.Inert)
	assert.Equal(t, "notification permission denied", st.InertReason)
	assert.Empty(t, f.src.Profiles())
}
