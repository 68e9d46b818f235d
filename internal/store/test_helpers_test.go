package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/geonudge/internal/model"
)

// testNow is a fixed local noon so "today" never straddles midnight.
var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

// createTestStore creates a new file-backed store whose clock is testNow.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithNow(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(f float64) *float64 { return &f }

// createTestEvent creates a GEOFENCE_ENTER event with the fields the engine fills.
func createTestEvent(reminderID, storeID string, at time.Time) EventRecord {
	return EventRecord{
		EventType:     EventGeofenceEnter,
		ReminderID:    reminderID,
		ReminderTitle: "buy milk",
		StoreID:       storeID,
		StoreName:     "Corner Pharmacy",
		StoreType:     string(model.StoreTypePharmacy),
		UserLat:       ptr(35.6812),
		UserLng:       ptr(139.7671),
		StoreLat:      ptr(35.6814),
		StoreLng:      ptr(139.7671),
		Distance:      ptr(22.2),
		TriggeredAt:   at,
		Metadata:      map[string]any{"trigger_id": "t-1"},
	}
}
