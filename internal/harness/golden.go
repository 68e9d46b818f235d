package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render writes a result as the plain-text trace stored in golden files:
// events with their offsets and metadata, the notifications, and the final
// engine state. Metadata keys are sorted, so the output is deterministic.
func Render(name string, result *Result) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "scenario: %s\n", name)

	fmt.Fprintf(&buf, "events:\n")
	for _, ev := range result.Trace {
		fmt.Fprintf(&buf, "  %d +%s %s", ev.Seq, ev.Offset, ev.Type)
		if ev.ReminderID != "" {
			fmt.Fprintf(&buf, " reminder=%s", ev.ReminderID)
		}
		if ev.StoreID != "" {
			fmt.Fprintf(&buf, " store=%s", ev.StoreID)
		}
		if ev.Distance != nil {
			fmt.Fprintf(&buf, " distance=%.1f", *ev.Distance)
		}
		if len(ev.Metadata) > 0 {
			fmt.Fprintf(&buf, " %s", formatMap(ev.Metadata))
		}
		buf.WriteByte('\n')
	}

	fmt.Fprintf(&buf, "notifications:\n")
	for i, n := range result.Notifications {
		fmt.Fprintf(&buf, "  %d %s | %s | %v\n", i+1, n.Title,
			strings.ReplaceAll(n.Body, "\n", " / "), n.Data["trigger_id"])
	}

	f := result.Final
	fmt.Fprintf(&buf, "final: mode=%s monitoring=%t inert=%t reminders=%d dwells=%d\n",
		f.Mode, f.Monitoring, f.Inert, f.ActiveReminders, f.PendingDwells)
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares its rendered trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Render(name, result))
}
