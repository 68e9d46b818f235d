package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/geonudge/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Database string
}

// StatsResult combines today's counts with whole-database totals.
type StatsResult struct {
	Today  store.TodayStats `json:"today"`
	Totals store.Stats      `json:"totals"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the local database",
		Long: `Summarise the local database: today's events, triggers and distinct
stores entered, plus whole-database row counts.

Examples:
  geonudge stats
  geonudge stats --db ./geonudge.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides store.path)")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, _, err := openDatabase(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var result StatsResult
	if result.Today, err = st.TodayStats(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read today's stats", err)
	}
	if result.Totals, err = st.Stats(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read totals", err)
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).JSON(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Today")
	fmt.Fprintf(w, "  events:         %s\n", count(result.Today.TotalEvents))
	fmt.Fprintf(w, "  triggers:       %s\n", count(result.Today.Triggers))
	fmt.Fprintf(w, "  stores entered: %s\n", count(result.Today.UniqueStores))
	fmt.Fprintln(w, "Totals")
	fmt.Fprintf(w, "  events:         %s (%s unsynced)\n", count(result.Totals.Events), count(result.Totals.UnsyncedEvents))
	fmt.Fprintf(w, "  locations:      %s\n", count(result.Totals.Locations))
	fmt.Fprintf(w, "  geofences:      %s (%s entered)\n", count(result.Totals.GeofenceStates), count(result.Totals.ActiveGeofences))
	return nil
}
