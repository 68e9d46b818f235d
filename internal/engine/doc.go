// Package engine implements the adaptive geofencing decision engine.
//
// The engine consumes location samples, keeps a cache of nearby stores,
// decides when the user has actually stopped at a store that matches an
// active reminder, and fires exactly one notification per visit.
//
// ARCHITECTURE:
//
// Single-Consumer Sample Loop:
// Every subscription pumps into one FIFO queue. Engine.Run() dequeues one
// sample at a time and calls OnLocationSample, which holds the engine mutex
// for the whole step. Registration calls from other goroutines interleave
// between steps, never inside one.
//
// Sample Processing Flow:
//  1. Validate coordinate; drop out-of-order samples
//  2. Infer speed from the previous sample and record location history
//  3. Speed gate: above the walking limit, stop here
//  4. Refresh the store cache (initial, expired, or displaced)
//  5. Step the Coarse/Precise mode machine on the nearest matching store
//  6. Per reminder: start, reset or complete the dwell timer
//  7. On completion: cooldown check, GEOFENCE_ENTER event, notification,
//     then the trigger policy (single_shot deactivates and unregisters)
//
// Monitoring Modes:
// Coarse samples rarely at low accuracy. Inside the enter threshold the
// engine switches to Precise for a time window; when the window runs out
// it either drops back to Coarse (outside the exit threshold) or extends
// the window geometrically up to a cap. The gap between the two thresholds
// is the hysteresis band.
//
// Profile switches are fire-and-forget: the evaluation path never waits on
// the location source.
//
// FAILURE MODEL:
//
// Directory, notification, repository and event store failures are logged
// and absorbed. Only a malformed sample or reminder surfaces as an error.
// A denied permission makes the engine inert rather than failing.
package engine
