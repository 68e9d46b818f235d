package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/store"
	"github.com/roach88/geonudge/internal/testutil"
)

// Tokyo Station. Test stores sit here; the user is placed by offset.
const (
	originLat = 35.6812
	originLng = 139.7671
)

var (
	pharmacy = model.Store{
		ID:        "s-pharm",
		Name:      "Corner Pharmacy",
		StoreType: model.StoreTypePharmacy,
		Latitude:  originLat,
		Longitude: originLng,
	}
	milkReminder = model.Reminder{
		ID:              "r-milk",
		StoreType:       model.StoreTypePharmacy,
		Title:           "buy milk",
		Memo:            "2 litres",
		TriggerDistance: 50,
		IsActive:        true,
	}
)

type fixture struct {
	eng   *Engine
	clock *testutil.FakeClock
	src   *testutil.FakeLocationSource
	dir   *testutil.FakeDirectory
	sink  *testutil.RecordingSink
	repo  *testutil.FakeRepo
	store *store.Store
	ctx   context.Context
}

type fixtureOption func(*fixtureSetup)

type fixtureSetup struct {
	cfg   Config
	perms Permissions
	store *store.Store
}

func withConfig(mut func(*Config)) fixtureOption {
	return func(s *fixtureSetup) { mut(&s.cfg) }
}

func withPerms(p Permissions) fixtureOption {
	return func(s *fixtureSetup) { s.perms = p }
}

func withStore(st *store.Store) fixtureOption {
	return func(s *fixtureSetup) { s.store = st }
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T, clock *testutil.FakeClock) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "engine.db"), store.WithNow(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// newFixture builds an engine over fakes and a real SQLite event store.
// The directory serves the pharmacy; the repository holds milkReminder.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	clock := testutil.NewFakeClock(testutil.Epoch)
	setup := fixtureSetup{cfg: DefaultConfig(), perms: GrantAll{}}
	for _, opt := range opts {
		opt(&setup)
	}
	if setup.store == nil {
		setup.store = openTestStore(t, clock)
	}

	f := &fixture{
		clock: clock,
		src:   testutil.NewFakeLocationSource(),
		dir:   testutil.NewFakeDirectory(pharmacy),
		sink:  testutil.NewRecordingSink(),
		repo:  testutil.NewFakeRepo(milkReminder),
		store: setup.store,
		ctx:   context.Background(),
	}

	eng, err := New(setup.cfg, f.src, f.dir, f.store, f.sink,
		WithClock(clock),
		WithLogger(quietLogger()),
		WithReminderRepository(f.repo),
		WithPermissions(setup.perms),
		WithTriggerIDs(NewSequenceGenerator("trg")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close(context.Background()) })
	f.eng = eng
	return f
}

func (f *fixture) register(t *testing.T, r model.Reminder) {
	t.Helper()
	require.NoError(t, f.eng.RegisterReminder(f.ctx, r))
}

// at feeds a sample northM metres north of the origin, sec seconds after
// Epoch, with the clock moved to the same instant.
func (f *fixture) at(t *testing.T, sec float64, northM float64) {
	t.Helper()
	ts := testutil.Epoch.Add(time.Duration(sec * float64(time.Second)))
	f.clock.Set(ts)
	lat, lng := geo.Offset(originLat, originLng, northM, 0)
	require.NoError(t, f.eng.OnLocationSample(f.ctx, model.Sample{
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  5,
		Timestamp: ts,
	}))
}

func (f *fixture) events(t *testing.T, types ...store.EventType) []store.EventRecord {
	t.Helper()
	all, err := f.store.EventsSince(f.ctx, 0)
	require.NoError(t, err)
	if len(types) == 0 {
		return all
	}
	want := make(map[store.EventType]bool, len(types))
	for _, et := range types {
		want[et] = true
	}
	var out []store.EventRecord
	for _, ev := range all {
		if want[ev.EventType] {
			out = append(out, ev)
		}
	}
	return out
}

func profileNames(src *testutil.FakeLocationSource) []string {
	var names []string
	for _, p := range src.Profiles() {
		names = append(names, p.Name)
	}
	return names
}
