package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/geonudge/internal/backend"
	"github.com/roach88/geonudge/internal/bus"
	"github.com/roach88/geonudge/internal/config"
	"github.com/roach88/geonudge/internal/directory"
	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/location"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/notify"
	"github.com/roach88/geonudge/internal/reminders"
	"github.com/roach88/geonudge/internal/server"
	"github.com/roach88/geonudge/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // overrides store.path
	Listen   string // overrides server.listen
	Offline  bool   // skip reminder sync against the backend

	// TriggerIDs overrides the trigger id generator (for testing).
	// If nil, the engine's UUIDv7 generator is used.
	TriggerIDs engine.TriggerIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the reminder daemon",
		Long: `Start the geonudge daemon.

The daemon opens the SQLite event store (creating it if needed), wires the
configured location source, store directory and notification sinks into
the engine, keeps the reminder list in sync with the backend, and serves
the HTTP API until interrupted.

Examples:
  geonudge run
  geonudge run --config ./geonudge.yaml
  geonudge run --db /tmp/geonudge.db --listen 127.0.0.1:9000 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides store.path)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "API listen address (overrides server.listen)")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "do not sync reminders from the backend")

	return cmd
}

func runDaemon(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging, opts.Verbose)
	slog.SetDefault(logger)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	d, err := newDaemon(cfg, opts, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start daemon", err)
	}
	defer d.close()

	fmt.Fprintf(cmd.OutOrStdout(), "geonudge %s listening on %s\n", Version, cfg.Server.Listen)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := d.run(ctx); err != nil {
		return WrapExitError(ExitFailure, "daemon error", err)
	}
	logger.Info("daemon stopped gracefully")
	return nil
}

// daemon is the wired set of long-running components.
type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	engine  *engine.Engine
	server  *server.Server
	repo    engine.ReminderRepository
	offline bool
	closers []func() error
}

// newDaemon opens the store and wires every collaborator named by cfg.
// On error, whatever was already opened is closed.
func newDaemon(cfg *config.Config, opts *RunOptions, logger *slog.Logger) (_ *daemon, err error) {
	d := &daemon{cfg: cfg, logger: logger, offline: opts.Offline}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	logger.Info("opening database", "path", cfg.Store.Path)
	d.store, err = store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, d.store.Close)

	api := backend.New(cfg.Backend.BaseURL,
		backend.WithToken(cfg.Backend.Token),
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logger),
	)
	d.repo = reminders.NewClient(api, reminders.WithDefaultTriggerDistance(cfg.Engine.DefaultTriggerDistance))

	var conn *bus.NATS
	if cfg.NATS.URL != "" {
		conn, err = bus.Connect(cfg.NATS.URL, "geonudge", logger)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeCLISetupFailure, "connecting to nats")
		}
		d.closers = append(d.closers, conn.Close)
	}

	src, err := d.locationSource(conn)
	if err != nil {
		return nil, err
	}

	dir, err := d.storeDirectory(api)
	if err != nil {
		return nil, err
	}

	sink, alerts := d.notificationSinks(conn)

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithReminderRepository(d.repo),
		engine.WithPermissions(cfg.Grants()),
	}
	if opts.TriggerIDs != nil {
		engOpts = append(engOpts, engine.WithTriggerIDs(opts.TriggerIDs))
	}
	d.engine, err = engine.New(cfg.EngineConfig(), src.source, dir, d.store, sink, engOpts...)
	if err != nil {
		return nil, err
	}

	srvOpts := []server.Option{
		server.WithLogger(logger),
		server.WithVersion(Version),
		server.WithDefaultTriggerDistance(cfg.Engine.DefaultTriggerDistance),
		server.WithProfileSource(src.profile),
	}
	if src.intake != nil {
		srvOpts = append(srvOpts, server.WithIntake(src.intake))
	}
	if alerts != nil {
		srvOpts = append(srvOpts, server.WithAlerts(alerts))
	}
	d.server = server.New(d.engine, d.store, srvOpts...)

	return d, nil
}

// wiredSource is the engine's location source plus what the API needs
// from it.
type wiredSource struct {
	source  engine.LocationSource
	profile server.ProfileSource
	intake  func(model.Sample) error
}

func (d *daemon) locationSource(conn *bus.NATS) (wiredSource, error) {
	switch d.cfg.Location.Source {
	case "nats":
		if conn == nil {
			return wiredSource{}, errs.New(errs.CodeCLISetupFailure, "location.source nats needs nats.url")
		}
		n := location.NewNATSSource(conn, d.cfg.NATS.SampleSubject, d.cfg.NATS.ProfileSubject, d.logger)
		return wiredSource{source: n, profile: n}, nil

	case "replay":
		track, err := location.LoadTrack(d.cfg.Location.TrackFile)
		if err != nil {
			return wiredSource{}, err
		}
		r := location.NewReplay(track, location.WithLogger(d.logger))
		d.closers = append(d.closers, func() error { r.Stop(); return nil })
		return wiredSource{source: r, profile: r}, nil

	default:
		p := location.NewPush(d.logger)
		return wiredSource{source: p, profile: p, intake: p.Push}, nil
	}
}

func (d *daemon) storeDirectory(api *backend.Client) (engine.StoreDirectory, error) {
	var next engine.StoreDirectory
	switch d.cfg.Directory.Source {
	case "static":
		s, err := directory.LoadStatic(d.cfg.Directory.StaticFile)
		if err != nil {
			return nil, err
		}
		d.logger.Info("static store directory loaded", "stores", s.Len())
		next = s
	default:
		next = directory.NewBackend(api, d.logger)
	}
	return directory.NewCached(next, d.cfg.Directory.CacheSize, d.cfg.Directory.CacheTTL), nil
}

// notificationSinks always logs, and additionally publishes to NATS and
// Redis when they are configured. The Redis sink doubles as the API's
// recent-alert reader.
func (d *daemon) notificationSinks(conn *bus.NATS) (engine.NotificationSink, server.AlertReader) {
	sinks := notify.Multi{notify.NewLogSink(d.logger)}
	if conn != nil {
		sinks = append(sinks, notify.NewNATSSink(conn, d.cfg.NATS.AlertSubject, true))
	}

	var alerts server.AlertReader
	if r := d.cfg.Redis; r.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
		})
		d.closers = append(d.closers, client.Close)
		rs := notify.NewRedisSink(client, notify.RedisOptions{
			KeyPrefix: r.KeyPrefix,
			ListKey:   r.ListKey,
			ListSize:  r.ListSize,
			TTL:       r.AlertTTL,
		})
		sinks = append(sinks, rs)
		alerts = rs
	}
	return sinks, alerts
}

// prepare mirrors the backend reminders once (unless offline) and then
// restores dwell timers. Restore only seeds registered reminders, so the
// first sync must finish before it.
func (d *daemon) prepare(ctx context.Context) {
	if !d.offline {
		if res, err := reminders.Sync(ctx, d.repo, d.engine, d.logger); err != nil {
			d.logger.Warn("initial reminder sync failed", "error", err)
		} else {
			d.logger.Info("reminders synced", "registered", res.Registered)
		}
	}

	if n, err := d.engine.Restore(ctx); err != nil {
		d.logger.Warn("dwell restore failed", "error", err)
	} else if n > 0 {
		d.logger.Info("dwell timers restored", "count", n)
	}
}

// run prepares the engine and runs it alongside periodic reminder sync,
// retention cleanup and the API until ctx is cancelled or one of them fails.
func (d *daemon) run(ctx context.Context) error {
	d.prepare(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("engine: %w", err)
		}
		cancel()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.server.ListenAndServe(ctx, d.cfg.Server.Listen); err != nil {
			errCh <- fmt.Errorf("api: %w", err)
		}
		cancel()
	}()

	if !d.offline {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reminders.SyncEvery(ctx, d.cfg.Sync.Interval, d.repo, d.engine, d.logger)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.cleanupEvery(ctx)
	}()

	wg.Wait()
	close(errCh)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := d.engine.Close(closeCtx); err != nil {
		d.logger.Warn("engine close failed", "error", err)
	}

	var problems []error
	for err := range errCh {
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}

// cleanupEvery prunes old rows once at start and then every
// store.cleanup_interval.
func (d *daemon) cleanupEvery(ctx context.Context) {
	prune := func() {
		res, err := d.store.Cleanup(ctx, d.cfg.Store.RetentionDays)
		if err != nil {
			if ctx.Err() == nil {
				d.logger.Warn("cleanup failed", "error", err)
			}
			return
		}
		if res.Events > 0 || res.Locations > 0 {
			d.logger.Info("old rows removed", "events", res.Events, "locations", res.Locations)
		}
	}

	prune()
	ticker := time.NewTicker(d.cfg.Store.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// close releases resources in reverse order of acquisition.
func (d *daemon) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Error("error closing resource", "error", err)
		}
	}
	d.closers = nil
}
