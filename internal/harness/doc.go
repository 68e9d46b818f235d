// Package harness runs scripted scenarios against the geofence engine.
//
// A scenario places stores and reminders around an origin, then plays a
// timed list of steps: location samples, reminder registration, directory
// and notifier outages. Assertions check the logged events, the delivered
// notifications, rows in the local store and the final engine state.
//
// # Scenario Format
//
//	name: pharmacy_visit
//	description: "Dwelling next to a pharmacy fires once"
//	config:
//	  dwell_required: 10s
//	origin: {latitude: 35.6812, longitude: 139.7671}
//	stores:
//	  - {id: s-1, name: Corner Pharmacy, store_type: pharmacy}
//	reminders:
//	  - {id: r-1, store_type: pharmacy, title: pick up prescription, trigger_distance: 30}
//	steps:
//	  - {at: 0s, register: r-1}
//	  - {at: 0s, sample: {north_m: 20}}
//	  - {at: 10s, sample: {north_m: 20}}
//	assertions:
//	  - type: event_contains
//	    event: GEOFENCE_ENTER
//	    fields: {reminder_id: r-1, distance: 20}
//	  - type: final_state
//	    table: geofence_states
//	    where: {reminder_id: r-1}
//	    expect: {state: EXITED}
//
// # Assertion Types
//
//   - event_contains: an event of the type with matching fields exists
//   - event_order: first occurrences of event types appear in order
//   - event_count: an event type (optionally filtered by fields) appears N times
//   - notification_count: exactly N notifications reached the sink
//   - final_state: one store row matches the expected column values
//   - engine_state: the engine status after the last step matches
//
// # Determinism
//
// Every run uses a fake clock starting at testutil.Epoch, an in-memory
// SQLite store and sequential trigger ids (trg-1, trg-2, ...), so the
// rendered trace can be compared against golden files.
package harness
