package engine

import (
	"fmt"
	"time"

	"github.com/roach88/geonudge/internal/model"
)

// TriggerPolicy decides what happens to a reminder after it fires.
type TriggerPolicy string

const (
	// PolicySingleShot deactivates the reminder remotely and unregisters it.
	PolicySingleShot TriggerPolicy = "single_shot"
	// PolicyRecurring keeps the reminder; the cooldown limits repeats.
	PolicyRecurring TriggerPolicy = "recurring"
)

// Config holds every threshold and timing the engine uses.
type Config struct {
	EnterThresholdM        float64
	ExitThresholdM         float64
	DwellRequired          time.Duration
	MaxWalkingSpeed        float64 // m/s
	StationarySpeed        float64 // m/s, below this a sample is tagged stationary
	Cooldown               time.Duration
	InitialPreciseDuration time.Duration
	MaxPreciseDuration     time.Duration
	PreciseGrowth          float64

	CoarseCacheTTL  time.Duration
	PreciseCacheTTL time.Duration
	SearchRadiusM   float64
	NetworkTimeout  time.Duration

	TriggerPolicy      TriggerPolicy
	DwellRestoreWindow time.Duration
	RecordLocations    bool

	CoarseProfile  model.Profile
	PreciseProfile model.Profile
}

// DefaultConfig returns the tuned defaults: 100m/150m hysteresis, 10s dwell,
// 30 km/h speed gate, one hour cooldown, 120s precise window growing x1.5 up
// to 600s.
func DefaultConfig() Config {
	return Config{
		EnterThresholdM:        100,
		ExitThresholdM:         150,
		DwellRequired:          10 * time.Second,
		MaxWalkingSpeed:        8.33,
		StationarySpeed:        0.5,
		Cooldown:               time.Hour,
		InitialPreciseDuration: 120 * time.Second,
		MaxPreciseDuration:     600 * time.Second,
		PreciseGrowth:          1.5,

		CoarseCacheTTL:  20 * time.Minute,
		PreciseCacheTTL: 10 * time.Minute,
		SearchRadiusM:   300,
		NetworkTimeout:  5 * time.Second,

		TriggerPolicy:      PolicySingleShot,
		DwellRestoreWindow: 60 * time.Second,
		RecordLocations:    true,

		CoarseProfile: model.Profile{
			Name:         string(model.ModeCoarse),
			Accuracy:     model.AccuracyLow,
			MinInterval:  600 * time.Second,
			MinDistanceM: 500,
		},
		PreciseProfile: model.Profile{
			Name:         string(model.ModePrecise),
			Accuracy:     model.AccuracyHigh,
			MinInterval:  10 * time.Second,
			MinDistanceM: 3,
		},
	}
}

// Validate returns all configuration problems at once.
func (c Config) Validate() []error {
	var errs []error
	positive := func(name string, v float64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	positiveDur := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	positive("enter_threshold_m", c.EnterThresholdM)
	positive("exit_threshold_m", c.ExitThresholdM)
	if c.ExitThresholdM <= c.EnterThresholdM {
		errs = append(errs, fmt.Errorf("exit_threshold_m (%v) must be greater than enter_threshold_m (%v)",
			c.ExitThresholdM, c.EnterThresholdM))
	}
	positiveDur("dwell_required", c.DwellRequired)
	positive("max_walking_speed", c.MaxWalkingSpeed)
	if c.StationarySpeed < 0 || c.StationarySpeed >= c.MaxWalkingSpeed {
		errs = append(errs, fmt.Errorf("stationary_speed must be in [0, max_walking_speed), got %v", c.StationarySpeed))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown))
	}
	positiveDur("initial_precise_duration", c.InitialPreciseDuration)
	if c.MaxPreciseDuration < c.InitialPreciseDuration {
		errs = append(errs, fmt.Errorf("max_precise_duration (%s) must be at least initial_precise_duration (%s)",
			c.MaxPreciseDuration, c.InitialPreciseDuration))
	}
	if c.PreciseGrowth < 1 {
		errs = append(errs, fmt.Errorf("precise_growth must be at least 1, got %v", c.PreciseGrowth))
	}
	positiveDur("coarse_cache_ttl", c.CoarseCacheTTL)
	positiveDur("precise_cache_ttl", c.PreciseCacheTTL)
	positive("search_radius_m", c.SearchRadiusM)
	positiveDur("network_timeout", c.NetworkTimeout)
	if c.TriggerPolicy != PolicySingleShot && c.TriggerPolicy != PolicyRecurring {
		errs = append(errs, fmt.Errorf("trigger_policy must be %q or %q, got %q",
			PolicySingleShot, PolicyRecurring, c.TriggerPolicy))
	}
	if c.DwellRestoreWindow < 0 {
		errs = append(errs, fmt.Errorf("dwell_restore_window must not be negative, got %s", c.DwellRestoreWindow))
	}
	return errs
}

// cacheTTL is the store cache lifetime for a mode.
func (c Config) cacheTTL(m model.Mode) time.Duration {
	if m == model.ModePrecise {
		return c.PreciseCacheTTL
	}
	return c.CoarseCacheTTL
}

func (c Config) profile(m model.Mode) model.Profile {
	if m == model.ModePrecise {
		return c.PreciseProfile
	}
	return c.CoarseProfile
}
