package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

// Engine is the adaptive geofencing decision engine.
//
// Samples from every subscription are pushed onto one FIFO queue and drained
// by a single Run loop; OnLocationSample runs to completion before the next
// sample is taken. A single mutex guards all engine state, so
// RegisterReminder, UnregisterReminder and Status may be called from any
// goroutine.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - OnLocationSample(): serialised by the engine mutex; Run is its usual caller
//
// Profile switches (coarse <-> precise) are fire-and-forget: they run on
// their own goroutine and are never awaited by the evaluation path.
type Engine struct {
	cfg       Config
	source    LocationSource
	directory StoreDirectory
	events    EventStore
	sink      NotificationSink
	repo      ReminderRepository
	perms     Permissions
	clock     Clock
	ids       TriggerIDGenerator
	logger    *slog.Logger

	queue     *sampleQueue
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool

	// Profile switching. profileGen drops superseded requests. lastPump is
	// closed when the newest pump exits; guarded by switchMu.
	switchMu      sync.Mutex
	profileGen    atomic.Uint64
	switches      sync.WaitGroup
	pumps         sync.WaitGroup
	lastPump      chan struct{}
	activeProfile atomic.Pointer[model.Profile]

	mu              sync.Mutex
	reminders       map[string]model.Reminder
	monitoring      bool
	mode            model.Mode
	modeEnteredAt   time.Time
	preciseDuration time.Duration
	current         *model.Sample
	stores          []model.Store
	cacheAt         time.Time
	cacheLat        float64
	cacheLng        float64
	dwells          map[string]dwellState
	lastTrigger     map[string]time.Time
	permChecked     bool
	inert           bool
	inertReason     string
}

// dwellState is the enter timestamp of the one binding a reminder is
// currently dwelling in.
type dwellState struct {
	storeID   string
	enteredAt time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithReminderRepository sets the repository asked to deactivate fired
// reminders. Without one, deactivation is local only.
func WithReminderRepository(r ReminderRepository) Option {
	return func(e *Engine) { e.repo = r }
}

// WithPermissions sets the permission oracle. Default: GrantAll.
func WithPermissions(p Permissions) Option {
	return func(e *Engine) { e.perms = p }
}

// WithTriggerIDs sets the trigger id generator. Default: UUIDv7Generator.
func WithTriggerIDs(g TriggerIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// New creates an Engine. The configuration is validated; every problem is
// reported in the returned error.
func New(
	cfg Config,
	source LocationSource,
	directory StoreDirectory,
	events EventStore,
	sink NotificationSink,
	opts ...Option,
) (*Engine, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, errs.Wrap(errors.Join(problems...), errs.CodeConfigValidateInvalidValue, "engine config")
	}
	if source == nil || directory == nil || events == nil || sink == nil {
		return nil, errs.New(errs.CodeConfigValidateInvalidValue,
			"location source, store directory, event store and notification sink are required")
	}

	e := &Engine{
		cfg:             cfg,
		source:          source,
		directory:       directory,
		events:          events,
		sink:            sink,
		perms:           GrantAll{},
		clock:           SystemClock{},
		ids:             UUIDv7Generator{},
		logger:          slog.Default(),
		queue:           newSampleQueue(),
		done:            make(chan struct{}),
		reminders:       make(map[string]model.Reminder),
		mode:            model.ModeCoarse,
		preciseDuration: cfg.InitialPreciseDuration,
		dwells:          make(map[string]dwellState),
		lastTrigger:     make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Submit enqueues a sample for the Run loop.
// Thread-safe: may be called from any goroutine.
func (e *Engine) Submit(s model.Sample) error {
	if !e.queue.Enqueue(s) {
		return errs.New(errs.CodeEngineStopped, "engine stopped")
	}
	return nil
}

// Run starts the single-consumer sample loop.
// Blocks until ctx is cancelled or Stop/Close is called.
//
// ERROR HANDLING: a rejected sample is logged and the loop continues.
// Collaborator failures never reach here; OnLocationSample absorbs them.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	e.mu.Lock()
	e.checkPermissionsLocked(ctx)
	e.mu.Unlock()

	e.logger.Info("engine starting")

	for {
		sample, ok := e.queue.TryDequeue()
		if ok {
			if err := e.OnLocationSample(ctx, sample); err != nil {
				e.logger.Debug("sample dropped", "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the sample queue. Run drains what is queued and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Close stops the loop, both subscriptions and every stream pump, and
// clears all in-memory state. Safe to call more than once.
func (e *Engine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		e.queue.Close()

		// Invalidate any queued profile switch before it subscribes again.
		// done is closed under mu so requestProfile never adds to switches
		// after the wait below starts.
		e.mu.Lock()
		e.profileGen.Add(1)
		close(e.done)
		e.mu.Unlock()
		e.switches.Wait()

		uctx, cancel := context.WithTimeout(ctx, e.cfg.NetworkTimeout)
		err = e.source.Unsubscribe(uctx)
		cancel()
		e.activeProfile.Store(nil)
		e.pumps.Wait()

		e.mu.Lock()
		e.reminders = make(map[string]model.Reminder)
		e.dwells = make(map[string]dwellState)
		e.lastTrigger = make(map[string]time.Time)
		e.stores = nil
		e.cacheAt = time.Time{}
		e.current = nil
		e.monitoring = false
		e.mode = model.ModeCoarse
		e.modeEnteredAt = time.Time{}
		e.preciseDuration = e.cfg.InitialPreciseDuration
		e.mu.Unlock()

		e.logger.Info("engine closed")
	})
	if err != nil {
		return errs.Wrap(err, errs.CodeLocationSourceFailure, "unsubscribe on close")
	}
	return nil
}

// checkPermissionsLocked decides once whether the engine is inert.
// An inert engine keeps its registration table and current location but
// never subscribes, evaluates or notifies.
func (e *Engine) checkPermissionsLocked(ctx context.Context) {
	if e.permChecked {
		return
	}
	e.permChecked = true

	switch {
	case !e.perms.LocationGranted(ctx):
		e.inert, e.inertReason = true, "location permission denied"
	case !e.perms.NotificationsGranted(ctx):
		e.inert, e.inertReason = true, "notification permission denied"
	}
	if e.inert {
		e.logger.Warn("engine inert", "reason", e.inertReason)
	}
}
