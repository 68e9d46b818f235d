package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/geonudge/internal/errs"
)

//go:embed schema.cue
var schemaSource string

// SchemaError is one CUE constraint violation.
type SchemaError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidateSchema checks c against the embedded CUE schema.
// Uses the CUE Go API directly: the config is encoded into a CUE value and
// unified with #Config.
func ValidateSchema(c *Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return errs.Wrap(formatCUEError(err), errs.CodeConfigValidateInvalidValue, "compiling config schema")
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(c.schemaView()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return errs.Wrap(formatCUEError(err), errs.CodeConfigValidateInvalidValue, "config schema")
	}
	return nil
}

// schemaView is the subset of c the schema constrains, with durations in
// seconds.
func (c *Config) schemaView() map[string]any {
	e := c.Engine
	profile := func(p ProfileConfig) map[string]any {
		return map[string]any{
			"accuracy":       p.Accuracy,
			"min_interval_s": p.MinInterval.Seconds(),
			"min_distance_m": p.MinDistanceM,
		}
	}
	return map[string]any{
		"engine": map[string]any{
			"enter_threshold_m":        e.EnterThresholdM,
			"exit_threshold_m":         e.ExitThresholdM,
			"dwell_required_s":         e.DwellRequired.Seconds(),
			"max_walking_speed":        e.MaxWalkingSpeed,
			"stationary_speed":         e.StationarySpeed,
			"cooldown_s":               e.Cooldown.Seconds(),
			"initial_precise_s":        e.InitialPreciseDuration.Seconds(),
			"max_precise_s":            e.MaxPreciseDuration.Seconds(),
			"precise_growth":           e.PreciseGrowth,
			"search_radius_m":          e.SearchRadiusM,
			"network_timeout_s":        e.NetworkTimeout.Seconds(),
			"coarse_cache_ttl_s":       e.CoarseCacheTTL.Seconds(),
			"precise_cache_ttl_s":      e.PreciseCacheTTL.Seconds(),
			"default_trigger_distance": e.DefaultTriggerDistance,
			"trigger_policy":           e.TriggerPolicy,
		},
		"profiles": map[string]any{
			"coarse":  profile(c.Profiles.Coarse),
			"precise": profile(c.Profiles.Precise),
		},
		"store":    map[string]any{"retention_days": c.Store.RetentionDays},
		"location": map[string]any{"source": c.Location.Source},
		"directory": map[string]any{
			"source":      c.Directory.Source,
			"cache_size":  c.Directory.CacheSize,
			"cache_ttl_s": c.Directory.CacheTTL.Seconds(),
		},
		"logging": map[string]any{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
		},
	}
}

// formatCUEError flattens CUE errors into one SchemaError per violation.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return err
	}

	out := make([]error, 0, len(list))
	for _, e := range list {
		se := &SchemaError{
			Path:    strings.Join(e.Path(), "."),
			Message: e.Error(),
		}
		if positions := cueerrors.Positions(e); len(positions) > 0 {
			se.Pos = positions[0]
		}
		out = append(out, se)
	}
	return errors.Join(out...)
}
