package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/geonudge/internal/model"
)

// ErrInjected is the failure returned by fakes switched into failure mode.
var ErrInjected = errors.New("injected failure")

// FakeLocationSource records every subscription and lets tests emit samples
// on the active stream.
//
// Subscribing again closes the previous stream, as real sources do.
type FakeLocationSource struct {
	mu           sync.Mutex
	profiles     []model.Profile
	unsubscribes int
	ch           chan model.Sample
	subscribeErr error
}

// NewFakeLocationSource creates an idle source.
func NewFakeLocationSource() *FakeLocationSource {
	return &FakeLocationSource{}
}

// Subscribe implements engine.LocationSource.
func (f *FakeLocationSource) Subscribe(_ context.Context, p model.Profile) (<-chan model.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	if f.ch != nil {
		close(f.ch)
	}
	f.ch = make(chan model.Sample, 64)
	f.profiles = append(f.profiles, p)
	return f.ch, nil
}

// Unsubscribe implements engine.LocationSource.
func (f *FakeLocationSource) Unsubscribe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
	f.unsubscribes++
	return nil
}

// FailSubscribe makes every following Subscribe return err. nil restores.
func (f *FakeLocationSource) FailSubscribe(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

// Emit delivers s on the active stream. Returns false when nothing is
// subscribed or the buffer is full.
func (f *FakeLocationSource) Emit(s model.Sample) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch == nil {
		return false
	}
	select {
	case f.ch <- s:
		return true
	default:
		return false
	}
}

// Profiles returns every profile subscribed with, in order.
func (f *FakeLocationSource) Profiles() []model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Profile(nil), f.profiles...)
}

// LastProfile returns the most recent profile, or false if none.
func (f *FakeLocationSource) LastProfile() (model.Profile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.profiles) == 0 {
		return model.Profile{}, false
	}
	return f.profiles[len(f.profiles)-1], true
}

// Active reports whether a stream is open.
func (f *FakeLocationSource) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch != nil
}

// Unsubscribes returns how many times Unsubscribe was called.
func (f *FakeLocationSource) Unsubscribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribes
}

// DirectoryQuery is one recorded QueryNearby call.
type DirectoryQuery struct {
	Lat, Lng, RadiusM float64
}

// FakeDirectory serves a fixed store list.
type FakeDirectory struct {
	mu      sync.Mutex
	stores  []model.Store
	err     error
	queries []DirectoryQuery
}

// NewFakeDirectory creates a directory returning stores for every query.
func NewFakeDirectory(stores ...model.Store) *FakeDirectory {
	return &FakeDirectory{stores: stores}
}

// QueryNearby implements engine.StoreDirectory. The radius is not applied.
func (f *FakeDirectory) QueryNearby(_ context.Context, lat, lng, radiusM float64) ([]model.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, DirectoryQuery{Lat: lat, Lng: lng, RadiusM: radiusM})
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Store(nil), f.stores...), nil
}

// SetStores replaces the served list.
func (f *FakeDirectory) SetStores(stores ...model.Store) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores = stores
}

// Fail makes queries return err. nil restores.
func (f *FakeDirectory) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Queries returns every recorded query.
func (f *FakeDirectory) Queries() []DirectoryQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DirectoryQuery(nil), f.queries...)
}

// PatchCall is one recorded Patch.
type PatchCall struct {
	ID    string
	Patch model.ReminderPatch
}

// FakeRepo is an in-memory reminder repository.
type FakeRepo struct {
	mu        sync.Mutex
	reminders map[string]model.Reminder
	order     []string
	patches   []PatchCall
	patchErr  error
	listErr   error
}

// NewFakeRepo creates a repository holding reminders.
func NewFakeRepo(reminders ...model.Reminder) *FakeRepo {
	f := &FakeRepo{reminders: make(map[string]model.Reminder)}
	for _, r := range reminders {
		f.reminders[r.ID] = r
		f.order = append(f.order, r.ID)
	}
	return f
}

// List implements engine.ReminderRepository.
func (f *FakeRepo) List(context.Context) ([]model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Reminder, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.reminders[id])
	}
	return out, nil
}

// Patch implements engine.ReminderRepository. The call is recorded even
// when it fails.
func (f *FakeRepo) Patch(_ context.Context, id string, patch model.ReminderPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, PatchCall{ID: id, Patch: patch})
	if f.patchErr != nil {
		return f.patchErr
	}
	r, ok := f.reminders[id]
	if !ok {
		return ErrInjected
	}
	if patch.IsActive != nil {
		r.IsActive = *patch.IsActive
	}
	f.reminders[id] = r
	return nil
}

// FailPatch makes Patch return err. nil restores.
func (f *FakeRepo) FailPatch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchErr = err
}

// FailList makes List return err. nil restores.
func (f *FakeRepo) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// Patches returns every recorded Patch call.
func (f *FakeRepo) Patches() []PatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PatchCall(nil), f.patches...)
}

// Get returns the stored reminder.
func (f *FakeRepo) Get(id string) (model.Reminder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	return r, ok
}

// RecordingSink keeps every notification it is asked to deliver.
type RecordingSink struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Notify implements engine.NotificationSink. The notification is recorded
// even when the sink is failing.
func (s *RecordingSink) Notify(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

// Fail makes Notify return err. nil restores.
func (s *RecordingSink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Notifications returns everything recorded so far.
func (s *RecordingSink) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.sent...)
}
