package location

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geonudge/internal/bus"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
	"github.com/roach88/geonudge/internal/testutil"
)

var (
	coarse  = model.Profile{Name: "coarse", Accuracy: model.AccuracyLow, MinInterval: 10 * time.Minute, MinDistanceM: 500}
	precise = model.Profile{Name: "precise", Accuracy: model.AccuracyHigh, MinInterval: 10 * time.Second, MinDistanceM: 3}
)

func sampleAt(lat float64) model.Sample {
	return model.Sample{Latitude: lat, Longitude: 139.7671, Timestamp: testutil.Epoch}
}

func TestPush_Lifecycle(t *testing.T) {
	p := NewPush(nil)
	ctx := context.Background()

	err := p.Push(sampleAt(35))
	assert.True(t, errs.HasCode(err, errs.CodeLocationNotMonitoring))
	_, active := p.Profile()
	assert.False(t, active)

	first, err := p.Subscribe(ctx, coarse)
	require.NoError(t, err)
	require.NoError(t, p.Push(sampleAt(35)))
	assert.Equal(t, 35.0, (<-first).Latitude)

	second, err := p.Subscribe(ctx, precise)
	require.NoError(t, err)
	_, open := <-first
	assert.False(t, open, "previous channel is closed on re-subscribe")

	prof, active := p.Profile()
	assert.True(t, active)
	assert.Equal(t, "precise", prof.Name)

	require.NoError(t, p.Push(sampleAt(36)))
	assert.Equal(t, 36.0, (<-second).Latitude)

	require.NoError(t, p.Unsubscribe(ctx))
	_, open = <-second
	assert.False(t, open)
	require.NoError(t, p.Unsubscribe(ctx))
}

func TestPush_FullBufferDrops(t *testing.T) {
	p := NewPush(nil)
	_, err := p.Subscribe(context.Background(), coarse)
	require.NoError(t, err)

	for i := 0; i < StreamBuffer; i++ {
		require.NoError(t, p.Push(sampleAt(35)))
	}
	err = p.Push(sampleAt(35))
	assert.True(t, errs.HasCode(err, errs.CodeLocationSourceFailure))
	assert.Equal(t, 1, p.Dropped())
}

func TestNATSSource_ConsumesAndAnnounces(t *testing.T) {
	b := bus.NewMemory()
	src := NewNATSSource(b, "loc.sample", "loc.profile", nil)
	ctx := context.Background()

	ch, err := src.Subscribe(ctx, coarse)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("loc.sample"))

	data, err := json.Marshal(sampleAt(35.5))
	require.NoError(t, err)
	require.NoError(t, b.Publish("loc.sample", data))
	require.NoError(t, b.Publish("loc.sample", []byte("not json")))

	got := <-ch
	assert.Equal(t, 35.5, got.Latitude)
	assert.True(t, got.Timestamp.Equal(testutil.Epoch))
	assert.Empty(t, ch)

	_, err = src.Subscribe(ctx, precise)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("loc.sample"), "re-subscribe reuses the subscription")

	require.NoError(t, src.Unsubscribe(ctx))
	assert.Zero(t, b.Subscribers("loc.sample"))

	announced := b.Published("loc.profile")
	require.Len(t, announced, 3)
	var req ProfileRequest
	require.NoError(t, json.Unmarshal(announced[1].Data, &req))
	assert.True(t, req.Active)
	assert.Equal(t, "precise", req.Profile.Name)
	require.NoError(t, json.Unmarshal(announced[2].Data, &req))
	assert.False(t, req.Active)
}

func TestNATSSource_SubscribeFailure(t *testing.T) {
	b := bus.NewMemory()
	b.Fail(testutil.ErrInjected)
	src := NewNATSSource(b, "loc.sample", "", nil)

	_, err := src.Subscribe(context.Background(), coarse)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeLocationSourceFailure))
	_, active := src.Profile()
	assert.False(t, active)
}

const trackYAML = `
origin: {latitude: 35.6812, longitude: 139.7671}
points:
  - {at: 0s, north_m: 400}
  - {at: 30s, north_m: 20, accuracy: 8, speed: 1.2}
  - {at: 45s, latitude: 35.0, longitude: 139.0}
`

func TestParseTrack(t *testing.T) {
	track, err := ParseTrack([]byte(trackYAML))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, track.Duration())

	samples := track.Samples(testutil.Epoch)
	require.Len(t, samples, 3)
	assert.InDelta(t, 400, geo.Distance(35.6812, 139.7671, samples[0].Latitude, samples[0].Longitude), 0.5)
	assert.Equal(t, testutil.Epoch.Add(30*time.Second), samples[1].Timestamp)
	assert.Equal(t, 8.0, samples[1].Accuracy)
	require.NotNil(t, samples[1].Speed)
	assert.Equal(t, 1.2, *samples[1].Speed)
	assert.Equal(t, 35.0, samples[2].Latitude)
}

func TestParseTrack_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "points: []"},
		{"unknown field", "points:\n  - {at: 0s, nort_m: 1}"},
		{"out of order", "origin: {latitude: 1, longitude: 1}\npoints:\n  - {at: 5s}\n  - {at: 1s}"},
		{"offset without origin", "points:\n  - {at: 0s, north_m: 5}"},
		{"half coordinate", "points:\n  - {at: 0s, latitude: 35}"},
		{"bad origin", "origin: {latitude: 95, longitude: 0}\npoints:\n  - {at: 0s}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTrack([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, errs.CodeLocationTrackInvalid))
		})
	}
}

func TestLoadTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(trackYAML), 0o644))
	track, err := LoadTrack(path)
	require.NoError(t, err)
	assert.Len(t, track.Points, 3)

	_, err = LoadTrack(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errs.HasCode(err, errs.CodeLocationTrackInvalid))
}

func TestReplay_PlaysTrack(t *testing.T) {
	track, err := ParseTrack([]byte(trackYAML))
	require.NoError(t, err)
	clock := testutil.NewFakeClock(time.Time{})
	r := NewReplay(track, WithRate(1000), WithNow(clock.Now))

	ch, err := r.Subscribe(context.Background(), coarse)
	require.NoError(t, err)

	var got []model.Sample
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case s := <-ch:
			got = append(got, s)
		case <-timeout:
			t.Fatalf("received %d of 3 samples", len(got))
		}
	}
	<-r.Done()
	assert.Equal(t, 35.0, got[2].Latitude)
	assert.True(t, got[0].Timestamp.Equal(testutil.Epoch))
}

func TestReplay_Stop(t *testing.T) {
	track, err := ParseTrack([]byte("points:\n  - {at: 0s, latitude: 1, longitude: 1}\n  - {at: 1h, latitude: 2, longitude: 2}"))
	require.NoError(t, err)
	r := NewReplay(track)

	ch, err := r.Subscribe(context.Background(), coarse)
	require.NoError(t, err)
	<-ch
	r.Stop()
	r.Stop()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("replay did not stop")
	}
	require.NoError(t, r.Unsubscribe(context.Background()))
}
