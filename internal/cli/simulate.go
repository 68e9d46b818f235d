package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/geonudge/internal/directory"
	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/harness"
	"github.com/roach88/geonudge/internal/location"
	"github.com/roach88/geonudge/internal/model"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Track     string
	Stores    string
	Reminders string
	Dwell     time.Duration
	Policy    string
}

// SimulateResult is the JSON shape of a simulation.
type SimulateResult struct {
	Name          string               `json:"name"`
	Events        []harness.TraceEvent `json:"events"`
	Notifications []model.Notification `json:"notifications"`
	Final         harness.FinalState   `json:"final"`
	Errors        []string             `json:"errors,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a track through a fresh engine",
		Long: `Play a recorded or hand-written track through a fresh engine and print
the resulting event timeline and notifications.

The engine runs on a simulated clock against an in-memory store, so a
track of any length finishes immediately. Every reminder is registered
before the first point.

Examples:
  geonudge simulate --track walk.yaml --stores stores.yaml --reminders reminders.yaml
  geonudge simulate --track walk.yaml --stores stores.yaml --reminders reminders.yaml --dwell 30s
  geonudge simulate --track walk.yaml --stores stores.yaml --reminders reminders.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Track, "track", "", "track YAML file (required)")
	_ = cmd.MarkFlagRequired("track")
	cmd.Flags().StringVar(&opts.Stores, "stores", "", "static store YAML file (required)")
	_ = cmd.MarkFlagRequired("stores")
	cmd.Flags().StringVar(&opts.Reminders, "reminders", "", "reminder YAML file (required)")
	_ = cmd.MarkFlagRequired("reminders")
	cmd.Flags().DurationVar(&opts.Dwell, "dwell", 0, "override the required dwell time")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "override the trigger policy (single_shot|recurring)")

	return cmd
}

func runSimulate(opts *SimulateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	track, err := location.LoadTrack(opts.Track)
	if err != nil {
		return formatter.Fail(ExitCommandError, errs.CodeCLIInputInvalid, "failed to load track", err)
	}
	stores, err := directory.LoadStatic(opts.Stores)
	if err != nil {
		return formatter.Fail(ExitCommandError, errs.CodeCLIInputInvalid, "failed to load stores", err)
	}
	rems, err := harness.LoadReminders(opts.Reminders)
	if err != nil {
		return formatter.Fail(ExitCommandError, errs.CodeCLIInputInvalid, "failed to load reminders", err)
	}

	name := strings.TrimSuffix(filepath.Base(opts.Track), filepath.Ext(opts.Track))
	scenario := harness.FromTrack(name, track, stores.Stores(), rems)
	if cmd.Flags().Changed("dwell") {
		scenario.Config.DwellRequired = &opts.Dwell
	}
	if opts.Policy != "" {
		p := engine.TriggerPolicy(opts.Policy)
		if p != engine.PolicySingleShot && p != engine.PolicyRecurring {
			return formatter.Fail(ExitCommandError, errs.CodeCLIInputInvalid, "invalid flag",
				errs.Errorf(errs.CodeCLIInputInvalid, "policy must be single_shot or recurring, got %q", opts.Policy))
		}
		scenario.Config.TriggerPolicy = &opts.Policy
	}

	formatter.VerboseLog("Simulating %s: %d point(s), %d store(s), %d reminder(s)",
		name, len(track.Points), stores.Len(), len(rems))

	result, err := harness.RunWithLogger(scenario, quietLogger(formatter.GetErrWriter(), opts.Verbose))
	if err != nil {
		return formatter.Fail(ExitCommandError, errs.CodeCLISetupFailure, "simulation failed", err)
	}

	if opts.Format == "json" {
		out := SimulateResult{
			Name:          name,
			Events:        result.Trace,
			Notifications: result.Notifications,
			Final:         result.Final,
			Errors:        result.Errors,
		}
		if out.Events == nil {
			out.Events = []harness.TraceEvent{}
		}
		if out.Notifications == nil {
			out.Notifications = []model.Notification{}
		}
		if err := formatter.JSON(out); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), string(harness.Render(name, result)))
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("simulation reported %d error(s)", len(result.Errors)))
	}
	return nil
}
