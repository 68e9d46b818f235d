package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulateArgs(extra ...string) []string {
	args := []string{
		"--track", filepath.Join("testdata", "walk.yaml"),
		"--stores", filepath.Join("testdata", "stores.yaml"),
		"--reminders", filepath.Join("testdata", "reminders.yaml"),
	}
	return append(args, extra...)
}

func TestSimulateText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewSimulateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(simulateArgs())

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "scenario: walk")
	assert.Contains(t, out, "GEOFENCE_ENTER reminder=r-1 store=s-pharm distance=20.0")
	assert.Contains(t, out, "1 Corner Pharmacy | pick up prescription | trg-1")
	assert.Contains(t, out, "final: mode=coarse monitoring=false")
}

func TestSimulateJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewSimulateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(simulateArgs())

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string         `json:"status"`
		Data   SimulateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "walk", resp.Data.Name)
	require.Len(t, resp.Data.Notifications, 1)
	assert.Equal(t, "Corner Pharmacy", resp.Data.Notifications[0].Title)
}

func TestSimulateLongDwellDoesNotTrigger(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewSimulateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(simulateArgs("--dwell", "1m"))

	require.NoError(t, cmd.Execute())
	assert.NotContains(t, buf.String(), "GEOFENCE_ENTER")
	assert.Contains(t, buf.String(), "notifications:\nfinal:")
}

func TestSimulateInvalidPolicy(t *testing.T) {
	cmd := NewSimulateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(simulateArgs("--policy", "sometimes"))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulateMissingTrack(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewSimulateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{
		"--track", filepath.Join(t.TempDir(), "missing.yaml"),
		"--stores", filepath.Join("testdata", "stores.yaml"),
		"--reminders", filepath.Join("testdata", "reminders.yaml"),
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [location.track.invalid]")
}

func TestSimulateRequiresFlags(t *testing.T) {
	cmd := NewSimulateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--track", "walk.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
