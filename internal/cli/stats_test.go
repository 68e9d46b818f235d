package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_Text(t *testing.T) {
	db := seedDatabase(t, time.Now())

	out, err := execute(t, NewStatsCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Today\n")
	assert.Contains(t, out, "  events:         2\n")
	assert.Contains(t, out, "  triggers:       1\n")
	assert.Contains(t, out, "  stores entered: 1\n")
	assert.Contains(t, out, "Totals\n")
	assert.Contains(t, out, "  events:         3 (3 unsynced)\n")
	assert.Contains(t, out, "  locations:      2\n")
	assert.Contains(t, out, "  geofences:      0 (0 entered)\n")
}

func TestStats_JSON(t *testing.T) {
	db := seedDatabase(t, time.Now())

	out, err := execute(t, NewStatsCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Today.TotalEvents)
	assert.Equal(t, 1, resp.Data.Today.Triggers)
	assert.Equal(t, 3, resp.Data.Totals.Events)
	assert.Equal(t, 2, resp.Data.Totals.Locations)
}

func TestStats_MissingDatabase(t *testing.T) {
	_, err := execute(t, NewStatsCommand(&RootOptions{Format: "text"}), "--db", t.TempDir()+"/none.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
