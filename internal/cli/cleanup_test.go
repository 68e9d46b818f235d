package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geonudge/internal/store"
)

func TestCleanup_DefaultRetention(t *testing.T) {
	db := seedDatabase(t, time.Now())

	out, err := execute(t, NewCleanupCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 event(s) and 1 location(s) older than 30 day(s)\n", out)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 1, stats.Locations)
}

func TestCleanup_ConfigRetention(t *testing.T) {
	db := seedDatabase(t, time.Now())

	out, err := execute(t, NewCleanupCommand(&RootOptions{Format: "text", Config: filepath.Join("testdata", "config.yaml")}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "older than 14 day(s)")
}

func TestCleanup_DaysFlagJSON(t *testing.T) {
	db := seedDatabase(t, time.Now())

	out, err := execute(t, NewCleanupCommand(&RootOptions{Format: "json"}), "--db", db, "--days", "60")
	require.NoError(t, err)

	var resp struct {
		Data CleanupReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 60, resp.Data.RetentionDays)
	assert.Zero(t, resp.Data.Events)
	assert.Zero(t, resp.Data.Locations)
}

func TestCleanup_MissingDatabase(t *testing.T) {
	_, err := execute(t, NewCleanupCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
