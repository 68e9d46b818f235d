package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/location"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
	"github.com/roach88/geonudge/internal/testutil"
)

// TriggerIDPrefix prefixes the sequential trigger ids of a run.
const TriggerIDPrefix = "trg"

// Harness drives one engine through a scenario.
type Harness struct {
	engine    *engine.Engine
	store     *store.Store
	clock     *testutil.FakeClock
	directory *testutil.FakeDirectory
	repo      *testutil.FakeRepo
	sink      *testutil.RecordingSink
	track     *location.Track
	reminders map[string]model.Reminder
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh in-memory store, a fake clock starting at
// testutil.Epoch, fake collaborators and sequential trigger ids, so the
// trace is identical on every run. Samples are fed to OnLocationSample
// directly rather than through the Run loop.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with the engine logging to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	ctx := context.Background()

	clock := testutil.NewFakeClock(testutil.Epoch)
	st, err := store.Open(":memory:", store.WithNow(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	stores := make([]model.Store, 0, len(scenario.Stores))
	for _, s := range scenario.Stores {
		stores = append(stores, s.Store(scenario.Origin))
	}

	reminders := make(map[string]model.Reminder, len(scenario.Reminders))
	remote := make([]model.Reminder, 0, len(scenario.Reminders))
	for _, r := range scenario.Reminders {
		reminders[r.ID] = r.Reminder()
		remote = append(remote, r.Reminder())
	}

	var perms engine.Permissions = engine.GrantAll{}
	if p := scenario.Permissions; p != nil {
		perms = engine.StaticPermissions{Location: p.Location, Notifications: p.Notifications}
	}

	h := &Harness{
		store:     st,
		clock:     clock,
		directory: testutil.NewFakeDirectory(stores...),
		repo:      testutil.NewFakeRepo(remote...),
		sink:      testutil.NewRecordingSink(),
		track:     scenario.Track(),
		reminders: reminders,
	}

	eng, err := engine.New(
		scenario.Config.Apply(engine.DefaultConfig()),
		testutil.NewFakeLocationSource(),
		h.directory,
		st,
		h.sink,
		engine.WithClock(clock),
		engine.WithLogger(logger),
		engine.WithReminderRepository(h.repo),
		engine.WithPermissions(perms),
		engine.WithTriggerIDs(engine.NewSequenceGenerator(TriggerIDPrefix)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	h.engine = eng
	defer eng.Close(ctx)

	result := NewResult()
	for i, step := range scenario.Steps {
		clock.Set(testutil.Epoch.Add(step.At))
		err := h.execute(ctx, step)
		switch {
		case step.ExpectError != "" && err == nil:
			result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got none", i, step.action(), step.ExpectError))
		case step.ExpectError != "" && !errs.HasCode(err, errs.Code(step.ExpectError)):
			result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got %v", i, step.action(), step.ExpectError, err))
		case step.ExpectError == "" && err != nil:
			result.AddError(fmt.Sprintf("steps[%d] (%s): %v", i, step.action(), err))
		}
	}

	status := eng.Status()
	result.Final = FinalState{
		Mode:            string(status.Mode),
		Monitoring:      status.Monitoring,
		Inert:           status.Inert,
		ActiveReminders: status.ActiveReminders,
		PendingDwells:   status.PendingDwells,
		CachedStores:    status.CachedStores,
	}

	events, err := st.EventsSince(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	for i, rec := range events {
		result.Trace = append(result.Trace, traceEvent(i+1, testutil.Epoch, rec))
	}
	result.Notifications = h.sink.Notifications()

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// execute performs one step at the current clock time.
func (h *Harness) execute(ctx context.Context, step Step) error {
	switch step.action() {
	case "sample":
		return h.engine.OnLocationSample(ctx, h.track.Sample(step.Sample.point(step.At), testutil.Epoch))
	case "register":
		return h.engine.RegisterReminder(ctx, h.reminders[step.Register])
	case "unregister":
		return h.engine.UnregisterReminder(ctx, step.Unregister)
	case "directory":
		if step.Directory == "down" {
			h.directory.Fail(testutil.ErrInjected)
		} else {
			h.directory.Fail(nil)
		}
	case "notifier":
		if step.Notifier == "down" {
			h.sink.Fail(testutil.ErrInjected)
		} else {
			h.sink.Fail(nil)
		}
	}
	return nil
}
