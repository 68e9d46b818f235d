// Package server is the geonudge HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/notify"
	"github.com/roach88/geonudge/internal/store"
)

// Engine is the part of *engine.Engine the API drives.
type Engine interface {
	Status() engine.Status
	Reminders() []model.Reminder
	RegisterReminder(ctx context.Context, r model.Reminder) error
	UnregisterReminder(ctx context.Context, id string) error
	Submit(s model.Sample) error
}

// ProfileSource reports the sampling profile a device should use.
type ProfileSource interface {
	Profile() (model.Profile, bool)
}

// AlertReader lists recently delivered alerts.
type AlertReader interface {
	Recent(ctx context.Context, limit int) ([]notify.Alert, error)
}

// Server is the geonudge HTTP API server.
type Server struct {
	engine  Engine
	store   *store.Store
	intake  func(model.Sample) error
	profile ProfileSource
	alerts  AlertReader
	logger  *slog.Logger
	version string
	started time.Time

	defaultTriggerDistance float64

	router chi.Router
}

type Option func(*Server)

// WithIntake routes posted samples somewhere other than Engine.Submit,
// typically a push location source.
func WithIntake(fn func(model.Sample) error) Option {
	return func(s *Server) { s.intake = fn }
}

func WithProfileSource(p ProfileSource) Option {
	return func(s *Server) { s.profile = p }
}

func WithAlerts(a AlertReader) Option {
	return func(s *Server) { s.alerts = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithDefaultTriggerDistance applies to posted reminders without a
// trigger_distance.
func WithDefaultTriggerDistance(m float64) Option {
	return func(s *Server) { s.defaultTriggerDistance = m }
}

func New(eng Engine, st *store.Store, opts ...Option) *Server {
	s := &Server{
		engine:                 eng,
		store:                  st,
		logger:                 slog.Default(),
		version:                "dev",
		started:                time.Now(),
		defaultTriggerDistance: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.intake == nil {
		s.intake = eng.Submit
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/profile", s.handleProfile)

		r.Get("/timeline", s.handleTimeline)
		r.Get("/stats", s.handleStats)
		r.Get("/stats/today", s.handleTodayStats)
		r.Get("/locations", s.handleLocations)
		r.Get("/alerts", s.handleAlerts)

		r.Post("/samples", s.handleSamples)

		r.Get("/reminders", s.handleListReminders)
		r.Post("/reminders", s.handleRegisterReminder)
		r.Delete("/reminders/{id}", s.handleUnregisterReminder)
	})

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start))
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
