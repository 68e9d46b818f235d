package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/model"
)

// Registry is the part of the engine Sync drives.
type Registry interface {
	RegisterReminder(ctx context.Context, r model.Reminder) error
	UnregisterReminder(ctx context.Context, id string) error
	Reminders() []model.Reminder
}

var _ Registry = (*engine.Engine)(nil)

// Result summarises one Sync pass.
type Result struct {
	Registered   int `json:"registered"`
	Unregistered int `json:"unregistered"`
	Rejected     int `json:"rejected"`
}

// Sync registers every active remote reminder and unregisters local ones
// that vanished remotely or became inactive. Invalid remote reminders are
// skipped and counted; the rest of the pass continues. A failed List leaves
// the engine untouched.
func Sync(ctx context.Context, repo engine.ReminderRepository, reg Registry, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	remote, err := repo.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("sync reminders: %w", err)
	}

	var res Result
	var rejected []error
	active := make(map[string]bool, len(remote))
	for _, r := range remote {
		if !r.IsActive {
			continue
		}
		if err := reg.RegisterReminder(ctx, r); err != nil {
			res.Rejected++
			rejected = append(rejected, fmt.Errorf("reminder %s: %w", r.ID, err))
			logger.Warn("remote reminder rejected", "reminder_id", r.ID, "error", err)
			continue
		}
		active[r.Normalize().ID] = true
		res.Registered++
	}

	for _, local := range reg.Reminders() {
		if active[local.ID] {
			continue
		}
		if err := reg.UnregisterReminder(ctx, local.ID); err != nil {
			logger.Warn("unregister during sync failed", "reminder_id", local.ID, "error", err)
			continue
		}
		res.Unregistered++
	}

	logger.Debug("reminders synced",
		"registered", res.Registered,
		"unregistered", res.Unregistered,
		"rejected", res.Rejected)
	return res, errors.Join(rejected...)
}

// SyncEvery runs Sync every interval until ctx ends. The first pass is the
// caller's, so startup work that needs the reminders can run after it.
// Failures are logged; the loop keeps going.
func SyncEvery(ctx context.Context, interval time.Duration, repo engine.ReminderRepository, reg Registry, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		return
	}
	run := func() {
		if _, err := Sync(ctx, repo, reg, logger); err != nil && ctx.Err() == nil {
			logger.Warn("reminder sync failed", "error", err)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
