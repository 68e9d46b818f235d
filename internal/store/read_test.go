package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryTimeline_NewestFirstAndPaginated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.LogEvent(ctx, createTestEvent("r1", "s1", testNow.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	page1, err := s.QueryTimeline(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(5), page1[0].ID)
	assert.Equal(t, int64(4), page1[1].ID)

	page3, err := s.QueryTimeline(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, int64(1), page3[0].ID)

	empty, err := s.QueryTimeline(ctx, 2, 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestQueryTimeline_EqualTimestampsTieBreakOnID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.LogEvent(ctx, createTestEvent("r1", "s1", testNow))
		require.NoError(t, err)
	}
	events, err := s.QueryTimeline(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{events[0].ID, events[1].ID, events[2].ID})
}

func TestEventsSince(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.LogEvent(ctx, createTestEvent("r1", "s1", testNow.Add(-time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	events, err := s.EventsSince(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].ID)
	assert.Equal(t, int64(3), events[1].ID)
}

func TestActiveGeofenceStates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateGeofenceState(ctx, "r1", "s1", TransitionEnter, testNow.Add(-2*time.Minute))
	require.NoError(t, err)
	_, err = s.UpdateGeofenceState(ctx, "r2", "s1", TransitionEnter, testNow.Add(-20*time.Second))
	require.NoError(t, err)
	_, err = s.UpdateGeofenceState(ctx, "r3", "s2", TransitionEnter, testNow.Add(-10*time.Second))
	require.NoError(t, err)
	_, err = s.UpdateGeofenceState(ctx, "r3", "s2", TransitionExit, testNow.Add(-5*time.Second))
	require.NoError(t, err)

	states, err := s.ActiveGeofenceStates(ctx, testNow.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "r2_s1", states[0].GeofenceID)
	assert.Equal(t, "r2", states[0].ReminderID)
	assert.Equal(t, "s1", states[0].StoreID)
}

func TestLocationHistory_NewestFirstWithLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := s.LogLocation(ctx, LocationRecord{
			Lat: 35, Lng: 139, Timestamp: testNow.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	hist, err := s.LocationHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(4), hist[0].ID)
	assert.Equal(t, int64(3), hist[1].ID)
}
