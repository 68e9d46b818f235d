// Package config loads geonudge configuration from defaults, an optional
// YAML file and GEONUDGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

// EnvPrefix is the prefix for environment overrides: engine.cooldown is
// GEONUDGE_ENGINE_COOLDOWN.
const EnvPrefix = "GEONUDGE"

// Config is the top-level geonudge configuration.
type Config struct {
	Engine      EngineConfig      `mapstructure:"engine"`
	Profiles    ProfilesConfig    `mapstructure:"profiles"`
	Store       StoreConfig       `mapstructure:"store"`
	Location    LocationConfig    `mapstructure:"location"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Directory   DirectoryConfig   `mapstructure:"directory"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Server      ServerConfig      `mapstructure:"server"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// EngineConfig holds the decision thresholds and timings.
type EngineConfig struct {
	EnterThresholdM        float64       `mapstructure:"enter_threshold_m"`
	ExitThresholdM         float64       `mapstructure:"exit_threshold_m"`
	DwellRequired          time.Duration `mapstructure:"dwell_required"`
	MaxWalkingSpeed        float64       `mapstructure:"max_walking_speed"`
	StationarySpeed        float64       `mapstructure:"stationary_speed"`
	Cooldown               time.Duration `mapstructure:"cooldown"`
	InitialPreciseDuration time.Duration `mapstructure:"initial_precise_duration"`
	MaxPreciseDuration     time.Duration `mapstructure:"max_precise_duration"`
	PreciseGrowth          float64       `mapstructure:"precise_growth"`
	CoarseCacheTTL         time.Duration `mapstructure:"coarse_cache_ttl"`
	PreciseCacheTTL        time.Duration `mapstructure:"precise_cache_ttl"`
	SearchRadiusM          float64       `mapstructure:"search_radius_m"`
	NetworkTimeout         time.Duration `mapstructure:"network_timeout"`
	TriggerPolicy          string        `mapstructure:"trigger_policy"`
	DwellRestoreWindow     time.Duration `mapstructure:"dwell_restore_window"`
	DefaultTriggerDistance float64       `mapstructure:"default_trigger_distance"`
}

// ProfilesConfig holds the two sampling profiles.
type ProfilesConfig struct {
	Coarse  ProfileConfig `mapstructure:"coarse"`
	Precise ProfileConfig `mapstructure:"precise"`
}

// ProfileConfig is one sampling profile.
type ProfileConfig struct {
	Accuracy     string        `mapstructure:"accuracy"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	MinDistanceM float64       `mapstructure:"min_distance_m"`
}

// StoreConfig controls the local SQLite event store.
type StoreConfig struct {
	Path            string        `mapstructure:"path"`
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RecordLocations bool          `mapstructure:"record_locations"`
}

// LocationConfig selects where samples come from.
type LocationConfig struct {
	// Source is "push" (HTTP intake), "nats" or "replay".
	Source    string `mapstructure:"source"`
	TrackFile string `mapstructure:"track_file"`
}

// BackendConfig points at the reminder and store backend.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DirectoryConfig selects the store directory and its cache.
type DirectoryConfig struct {
	// Source is "backend" or "static".
	Source     string        `mapstructure:"source"`
	StaticFile string        `mapstructure:"static_file"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	CacheSize  int           `mapstructure:"cache_size"`
}

// NATSConfig enables the NATS sample source and alert publisher.
// An empty URL disables both.
type NATSConfig struct {
	URL            string `mapstructure:"url"`
	SampleSubject  string `mapstructure:"sample_subject"`
	ProfileSubject string `mapstructure:"profile_subject"`
	AlertSubject   string `mapstructure:"alert_subject"`
}

// RedisConfig enables the recent-alert cache. An empty Addr disables it.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	ListKey   string        `mapstructure:"list_key"`
	ListSize  int           `mapstructure:"list_size"`
	AlertTTL  time.Duration `mapstructure:"alert_ttl"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// SyncConfig controls the reminder mirror.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// PermissionsConfig reports the grants the host gave the process.
type PermissionsConfig struct {
	Location      bool `mapstructure:"location"`
	Notifications bool `mapstructure:"notifications"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(err, errs.CodeConfigLoadReadFailure, "reading config",
				errs.Field("path", path))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(err, errs.CodeConfigLoadReadFailure, "unmarshalling config")
	}

	problems := cfg.Validate()
	if err := ValidateSchema(&cfg); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return nil, errs.Wrap(errors.Join(problems...), errs.CodeConfigValidateInvalidValue, "validating config")
	}

	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	d := engine.DefaultConfig()

	v.SetDefault("engine.enter_threshold_m", d.EnterThresholdM)
	v.SetDefault("engine.exit_threshold_m", d.ExitThresholdM)
	v.SetDefault("engine.dwell_required", d.DwellRequired)
	v.SetDefault("engine.max_walking_speed", d.MaxWalkingSpeed)
	v.SetDefault("engine.stationary_speed", d.StationarySpeed)
	v.SetDefault("engine.cooldown", d.Cooldown)
	v.SetDefault("engine.initial_precise_duration", d.InitialPreciseDuration)
	v.SetDefault("engine.max_precise_duration", d.MaxPreciseDuration)
	v.SetDefault("engine.precise_growth", d.PreciseGrowth)
	v.SetDefault("engine.coarse_cache_ttl", d.CoarseCacheTTL)
	v.SetDefault("engine.precise_cache_ttl", d.PreciseCacheTTL)
	v.SetDefault("engine.search_radius_m", d.SearchRadiusM)
	v.SetDefault("engine.network_timeout", d.NetworkTimeout)
	v.SetDefault("engine.trigger_policy", string(d.TriggerPolicy))
	v.SetDefault("engine.dwell_restore_window", d.DwellRestoreWindow)
	v.SetDefault("engine.default_trigger_distance", 100.0)

	v.SetDefault("profiles.coarse.accuracy", string(d.CoarseProfile.Accuracy))
	v.SetDefault("profiles.coarse.min_interval", d.CoarseProfile.MinInterval)
	v.SetDefault("profiles.coarse.min_distance_m", d.CoarseProfile.MinDistanceM)
	v.SetDefault("profiles.precise.accuracy", string(d.PreciseProfile.Accuracy))
	v.SetDefault("profiles.precise.min_interval", d.PreciseProfile.MinInterval)
	v.SetDefault("profiles.precise.min_distance_m", d.PreciseProfile.MinDistanceM)

	v.SetDefault("store.path", "geonudge.db")
	v.SetDefault("store.retention_days", 30)
	v.SetDefault("store.cleanup_interval", 24*time.Hour)
	v.SetDefault("store.record_locations", d.RecordLocations)

	v.SetDefault("location.source", "push")
	v.SetDefault("location.track_file", "")

	v.SetDefault("backend.base_url", "http://127.0.0.1:8000/api")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", d.NetworkTimeout)

	v.SetDefault("directory.source", "backend")
	v.SetDefault("directory.static_file", "")
	v.SetDefault("directory.cache_ttl", 5*time.Minute)
	v.SetDefault("directory.cache_size", 256)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.sample_subject", "geonudge.location.sample")
	v.SetDefault("nats.profile_subject", "geonudge.location.profile")
	v.SetDefault("nats.alert_subject", "geonudge.alarm.GEOFENCE")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "geonudge:alert:")
	v.SetDefault("redis.list_key", "geonudge:alerts:recent")
	v.SetDefault("redis.list_size", 100)
	v.SetDefault("redis.alert_ttl", 24*time.Hour)

	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("sync.interval", 5*time.Minute)

	v.SetDefault("permissions.location", true)
	v.SetDefault("permissions.notifications", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// EngineConfig converts to the engine's configuration record.
func (c *Config) EngineConfig() engine.Config {
	e := c.Engine
	return engine.Config{
		EnterThresholdM:        e.EnterThresholdM,
		ExitThresholdM:         e.ExitThresholdM,
		DwellRequired:          e.DwellRequired,
		MaxWalkingSpeed:        e.MaxWalkingSpeed,
		StationarySpeed:        e.StationarySpeed,
		Cooldown:               e.Cooldown,
		InitialPreciseDuration: e.InitialPreciseDuration,
		MaxPreciseDuration:     e.MaxPreciseDuration,
		PreciseGrowth:          e.PreciseGrowth,
		CoarseCacheTTL:         e.CoarseCacheTTL,
		PreciseCacheTTL:        e.PreciseCacheTTL,
		SearchRadiusM:          e.SearchRadiusM,
		NetworkTimeout:         e.NetworkTimeout,
		TriggerPolicy:          engine.TriggerPolicy(e.TriggerPolicy),
		DwellRestoreWindow:     e.DwellRestoreWindow,
		RecordLocations:        c.Store.RecordLocations,
		CoarseProfile:          c.Profiles.Coarse.profile(model.ModeCoarse),
		PreciseProfile:         c.Profiles.Precise.profile(model.ModePrecise),
	}
}

func (p ProfileConfig) profile(m model.Mode) model.Profile {
	return model.Profile{
		Name:         string(m),
		Accuracy:     model.Accuracy(p.Accuracy),
		MinInterval:  p.MinInterval,
		MinDistanceM: p.MinDistanceM,
	}
}

// Grants returns the configured permissions.
func (c *Config) Grants() engine.StaticPermissions {
	return engine.StaticPermissions{
		Location:      c.Permissions.Location,
		Notifications: c.Permissions.Notifications,
	}
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one. Enumerations and numeric bounds
// are also covered by ValidateSchema.
func (c *Config) Validate() []error {
	var problems []error

	for _, err := range c.EngineConfig().Validate() {
		problems = append(problems, invalid("engine: %v", err))
	}
	problems = append(problems, c.validateProfiles()...)
	problems = append(problems, c.validateStore()...)
	problems = append(problems, c.validateSources()...)
	problems = append(problems, c.validateServer()...)

	return problems
}

func (c *Config) validateProfiles() []error {
	var problems []error
	profiles := []struct {
		name string
		ProfileConfig
	}{{"coarse", c.Profiles.Coarse}, {"precise", c.Profiles.Precise}}
	for _, p := range profiles {
		name := p.name
		if p.Accuracy != string(model.AccuracyLow) && p.Accuracy != string(model.AccuracyHigh) {
			problems = append(problems, invalid("profiles.%s.accuracy must be one of [low, high], got %q", name, p.Accuracy))
		}
		if p.MinInterval <= 0 {
			problems = append(problems, invalid("profiles.%s.min_interval must be positive, got %s", name, p.MinInterval))
		}
		if p.MinDistanceM < 0 {
			problems = append(problems, invalid("profiles.%s.min_distance_m must not be negative, got %g", name, p.MinDistanceM))
		}
	}
	return problems
}

func (c *Config) validateStore() []error {
	var problems []error
	if c.Store.Path == "" {
		problems = append(problems, invalid("store.path must not be empty"))
	}
	if c.Store.RetentionDays < 0 {
		problems = append(problems, invalid("store.retention_days must not be negative, got %d", c.Store.RetentionDays))
	}
	if c.Store.CleanupInterval <= 0 {
		problems = append(problems, invalid("store.cleanup_interval must be positive, got %s", c.Store.CleanupInterval))
	}
	return problems
}

func (c *Config) validateSources() []error {
	var problems []error

	switch c.Location.Source {
	case "push":
	case "nats":
		if c.NATS.URL == "" {
			problems = append(problems, invalid("location.source nats needs nats.url"))
		}
	case "replay":
		if c.Location.TrackFile == "" {
			problems = append(problems, invalid("location.source replay needs location.track_file"))
		}
	default:
		problems = append(problems, invalid("location.source must be one of [push, nats, replay], got %q", c.Location.Source))
	}

	switch c.Directory.Source {
	case "backend":
		if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
			problems = append(problems, invalid("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL))
		}
	case "static":
		if c.Directory.StaticFile == "" {
			problems = append(problems, invalid("directory.source static needs directory.static_file"))
		}
	default:
		problems = append(problems, invalid("directory.source must be one of [backend, static], got %q", c.Directory.Source))
	}
	// A directory entry outliving the engine's own cache TTL would answer a
	// TTL refresh with the list the engine just expired.
	if ttl := c.Directory.CacheTTL; ttl <= 0 {
		problems = append(problems, invalid("directory.cache_ttl must be positive, got %s", ttl))
	} else if limit := min(c.Engine.CoarseCacheTTL, c.Engine.PreciseCacheTTL); ttl >= limit {
		problems = append(problems, invalid("directory.cache_ttl must be shorter than the engine cache TTLs (%s), got %s", limit, ttl))
	}

	if c.Backend.Timeout <= 0 {
		problems = append(problems, invalid("backend.timeout must be positive, got %s", c.Backend.Timeout))
	}
	if c.Sync.Interval < 0 {
		problems = append(problems, invalid("sync.interval must not be negative, got %s", c.Sync.Interval))
	}
	if c.Redis.Addr != "" && c.Redis.ListSize <= 0 {
		problems = append(problems, invalid("redis.list_size must be positive, got %d", c.Redis.ListSize))
	}
	return problems
}

func (c *Config) validateServer() []error {
	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return []error{invalid("server.listen must be a valid host:port address, got %q", c.Server.Listen)}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errs.Errorf(errs.CodeConfigValidateInvalidValue, "config: "+format, args...)
}
