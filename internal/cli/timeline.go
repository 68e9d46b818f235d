package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/geonudge/internal/store"
)

// TimelineOptions holds flags for the timeline command.
type TimelineOptions struct {
	*RootOptions
	Database  string
	Limit     int
	Offset    int
	EventType string // optional - filter to one event type
	Reminder  string // optional - filter to one reminder
	Locations bool   // show location history instead of events

	// Now is the reference time for relative timestamps (for testing).
	Now func() time.Time
}

// TimelineResult holds the timeline output.
type TimelineResult struct {
	Events    []store.EventRecord    `json:"events,omitempty"`
	Locations []store.LocationRecord `json:"locations,omitempty"`
	Count     int                    `json:"count"`
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimelineOptions{RootOptions: rootOpts, Now: time.Now}

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show logged events, newest first",
		Long: `Show the event log of the local database, newest first.

Filters are applied to the fetched page, so --limit bounds the rows read,
not the rows shown. With --locations the recorded location history is
shown instead.

Examples:
  geonudge timeline
  geonudge timeline --db ./geonudge.db --limit 20
  geonudge timeline --type GEOFENCE_ENTER --reminder r-1
  geonudge timeline --locations --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides store.path)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum rows to read")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().StringVar(&opts.EventType, "type", "", "filter to one event type")
	cmd.Flags().StringVar(&opts.Reminder, "reminder", "", "filter to one reminder id")
	cmd.Flags().BoolVar(&opts.Locations, "locations", false, "show location history instead of events")

	return cmd
}

func runTimeline(opts *TimelineOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.EventType != "" && !store.EventType(opts.EventType).Valid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown event type: %s", opts.EventType))
	}

	st, _, err := openDatabase(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var result TimelineResult
	if opts.Locations {
		result.Locations, err = st.LocationHistory(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read location history", err)
		}
		result.Count = len(result.Locations)
	} else {
		events, err := st.QueryTimeline(ctx, opts.Limit, opts.Offset)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read timeline", err)
		}
		result.Events = filterEvents(events, opts.EventType, opts.Reminder)
		result.Count = len(result.Events)
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}

	w := cmd.OutOrStdout()
	if result.Count == 0 {
		fmt.Fprintln(w, "No rows found.")
		return nil
	}
	if opts.Locations {
		writeLocations(w, result.Locations, opts.Now())
	} else {
		writeEvents(w, result.Events, opts.Now())
	}
	return nil
}

// filterEvents keeps events matching the type and reminder filters.
func filterEvents(events []store.EventRecord, eventType, reminderID string) []store.EventRecord {
	out := make([]store.EventRecord, 0, len(events))
	for _, ev := range events {
		if eventType != "" && string(ev.EventType) != eventType {
			continue
		}
		if reminderID != "" && ev.ReminderID != reminderID {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func writeEvents(w io.Writer, events []store.EventRecord, now time.Time) {
	for _, ev := range events {
		fmt.Fprintf(w, "#%d  %s  %-27s", ev.ID, ev.TriggeredAt.Format(time.DateTime), ev.EventType)
		if ev.StoreName != "" {
			fmt.Fprintf(w, "  %s", ev.StoreName)
		}
		if ev.ReminderTitle != "" {
			fmt.Fprintf(w, "  %q", ev.ReminderTitle)
		} else if ev.ReminderID != "" {
			fmt.Fprintf(w, "  reminder=%s", ev.ReminderID)
		}
		if ev.Distance != nil {
			fmt.Fprintf(w, "  %.1fm", *ev.Distance)
		}
		fmt.Fprintf(w, "  (%s)\n", ago(ev.TriggeredAt, now))
	}
}

func writeLocations(w io.Writer, locs []store.LocationRecord, now time.Time) {
	for _, l := range locs {
		fmt.Fprintf(w, "#%d  %s  %.6f,%.6f  ±%.0fm", l.ID, l.Timestamp.Format(time.DateTime), l.Lat, l.Lng, l.Accuracy)
		if l.Speed != nil {
			fmt.Fprintf(w, "  %.1fm/s", *l.Speed)
		}
		if l.Activity != "" {
			fmt.Fprintf(w, "  %s", l.Activity)
		}
		fmt.Fprintf(w, "  (%s)\n", ago(l.Timestamp, now))
	}
}
