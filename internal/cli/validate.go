package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/geonudge/internal/config"
	"github.com/roach88/geonudge/internal/directory"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/harness"
	"github.com/roach88/geonudge/internal/location"
)

// File kinds validate recognises.
const (
	KindConfig    = "config"
	KindTrack     = "track"
	KindScenario  = "scenario"
	KindStores    = "stores"
	KindReminders = "reminders"
)

// ValidationIssue is one problem found in one file.
type ValidationIssue struct {
	File    string `json:"file"`
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Checked []string          `json:"checked"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check config, track, scenario, store and reminder files",
		Long: `Check geonudge input files without running anything.

The config (--config, or defaults plus environment when no file is given)
is always checked, first by the Go rules and then against the CUE schema.
Each further file is recognised by its top-level key:

  points      track
  steps       scenario
  stores      static store list
  reminders   reminder list

Examples:
  geonudge validate --config geonudge.yaml
  geonudge validate walk.yaml scenarios/pharmacy_visit.yaml stores.yaml
  geonudge validate --config geonudge.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	configName := opts.Config
	if configName == "" {
		configName = "(defaults)"
	}

	result := ValidationResult{Checked: []string{configName}}
	formatter.VerboseLog("Checking config %s", configName)
	if _, err := config.Load(opts.Config); err != nil {
		result.Errors = append(result.Errors, issues(configName, KindConfig, err)...)
	}

	for _, file := range files {
		result.Checked = append(result.Checked, file)
		kind, err := detectKind(file)
		if err != nil {
			result.Errors = append(result.Errors, issues(file, "", err)...)
			continue
		}
		formatter.VerboseLog("Checking %s %s", kind, file)
		if err := validateFile(kind, file); err != nil {
			result.Errors = append(result.Errors, issues(file, kind, err)...)
		}
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

// detectKind reads the top-level keys of a YAML file.
func detectKind(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeCLIInputInvalid, "reading file")
	}
	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return "", errs.Wrap(err, errs.CodeCLIInputInvalid, "parsing file")
	}
	switch {
	case has(top, "steps"):
		return KindScenario, nil
	case has(top, "points"):
		return KindTrack, nil
	case has(top, "stores"):
		return KindStores, nil
	case has(top, "reminders"):
		return KindReminders, nil
	}
	return "", errs.New(errs.CodeCLIInputInvalid,
		"unrecognised file: expected a top-level steps, points, stores or reminders key")
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func validateFile(kind, path string) error {
	var err error
	switch kind {
	case KindScenario:
		_, err = harness.LoadScenario(path)
	case KindTrack:
		_, err = location.LoadTrack(path)
	case KindStores:
		_, err = directory.LoadStatic(path)
	case KindReminders:
		_, err = harness.LoadReminders(path)
	default:
		err = errs.Errorf(errs.CodeCLIInputInvalid, "unknown kind %q", kind)
	}
	return err
}

// issues splits joined errors so each problem is reported on its own.
func issues(file, kind string, err error) []ValidationIssue {
	code := string(errs.CodeOf(err))
	if code == "" {
		code = string(errs.CodeCLIInputInvalid)
	}

	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []ValidationIssue{{File: file, Kind: kind, Code: code, Message: err.Error()}}
	}
	var out []ValidationIssue
	for _, e := range joined.Unwrap() {
		out = append(out, ValidationIssue{File: file, Kind: kind, Code: code, Message: e.Error()})
	}
	return out
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All files valid (%d checked)\n", len(result.Checked))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.Format == "json" {
		first := result.Errors[0]
		if err := formatter.JSONError(result, &CLIError{Code: first.Code, Message: first.Message}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range result.Errors {
		label := issue.File
		if issue.Kind != "" {
			label = fmt.Sprintf("%s (%s)", issue.File, issue.Kind)
		}
		fmt.Fprintln(formatter.Writer, label)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	return failure
}
