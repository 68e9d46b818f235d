package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/geonudge/internal/store"
)

// CleanupOptions holds flags for the cleanup command.
type CleanupOptions struct {
	*RootOptions
	Database      string
	RetentionDays int // -1 means store.retention_days from the config
}

// CleanupReport is the JSON shape of a cleanup run.
type CleanupReport struct {
	RetentionDays int `json:"retention_days"`
	store.CleanupResult
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete events and locations past retention",
		Long: `Delete event and location rows older than the retention period.
Geofence states and trigger marks are kept.

Examples:
  geonudge cleanup
  geonudge cleanup --db ./geonudge.db --days 7`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides store.path)")
	cmd.Flags().IntVar(&opts.RetentionDays, "days", -1, "retention in days (default store.retention_days)")

	return cmd
}

func runCleanup(opts *CleanupOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, cfg, err := openDatabase(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	days := opts.RetentionDays
	if days < 0 {
		days = cfg.Store.RetentionDays
	}

	res, err := st.Cleanup(ctx, days)
	if err != nil {
		return WrapExitError(ExitCommandError, "cleanup failed", err)
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).
			JSON(CleanupReport{RetentionDays: days, CleanupResult: res})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s event(s) and %s location(s) older than %d day(s)\n",
		count(res.Events), count(res.Locations), days)
	return nil
}
