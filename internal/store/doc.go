// Package store provides SQLite-backed durable storage for the geofence engine.
//
// The store keeps four tables:
//   - event_logs: append-only trigger and lifecycle events
//   - location_history: append-only position samples
//   - geofence_states: one row per (reminder, store) binding, ENTERED or EXITED
//   - trigger_marks: last trigger time per reminder, read by the cooldown check
//
// # Conventions
//
// Identity and ordering
//   - event_logs and location_history ids are AUTOINCREMENT, strictly
//     increasing and never reused, even after cleanup
//   - Timeline queries order by triggered_at DESC, id DESC so equal
//     timestamps still come back in a stable order
//
// Time
//   - All timestamps are INTEGER unix milliseconds
//   - "Today" is the local calendar day of the store's clock (see WithNow)
//
// Validation
//   - Records are validated at the store boundary; invalid input returns an
//     errs code store.event.invalid / store.location.invalid and is never written
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
