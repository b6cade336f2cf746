// Package config loads the daemon configuration from YAML with environment
// variable expansion and .env support.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chibaminto/compactalarm/internal/foundation/errors"
)

// Config represents the application configuration
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Ring    RingConfig    `yaml:"ring"`
	Timers  TimerConfig   `yaml:"timers"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects the persistence backend for alarm state.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	Path    string `yaml:"path"`
}

// RingConfig holds the ringing tunables.
type RingConfig struct {
	SnoozeMinutes      int    `yaml:"snooze_minutes"`
	AutoStopMinutes    int    `yaml:"auto_stop_minutes"`
	FadeInSeconds      int    `yaml:"fade_in_seconds"`
	FadeInSteps        int    `yaml:"fade_in_steps"`
	VibrationPatternMS []int  `yaml:"vibration_pattern_ms,omitempty"`
	SoundFile          string `yaml:"sound_file,omitempty"` // empty selects the built-in tone
}

// TimerConfig describes the host timer capabilities.
type TimerConfig struct {
	ExactAlarms bool `yaml:"exact_alarms"`
}

// BridgeConfig configures the NATS lifecycle bridge. An empty URL disables it.
type BridgeConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env if present so ${VAR} expansion below sees it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.NotFoundError("configuration file not found").
			WithContext("path", configPath).Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryPersistence, "failed to read config file").
			WithContext("path", configPath).Build()
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to unmarshal config").
			WithContext("path", configPath).Build()
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStatePath(c.Store.Backend)
	}
	if c.Ring.SnoozeMinutes == 0 {
		c.Ring.SnoozeMinutes = 5
	}
	if c.Ring.AutoStopMinutes == 0 {
		c.Ring.AutoStopMinutes = 3
	}
	if c.Ring.FadeInSeconds == 0 {
		c.Ring.FadeInSeconds = 30
	}
	if c.Ring.FadeInSteps == 0 {
		c.Ring.FadeInSteps = 60
	}
	if len(c.Ring.VibrationPatternMS) == 0 {
		c.Ring.VibrationPatternMS = []int{0, 1000, 500}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return errors.ValidationError("unknown store backend").
			WithContext("backend", c.Store.Backend).Build()
	}
	if c.Ring.SnoozeMinutes < 1 {
		return errors.ValidationError("snooze_minutes must be at least 1").Build()
	}
	if c.Ring.AutoStopMinutes < 1 {
		return errors.ValidationError("auto_stop_minutes must be at least 1").Build()
	}
	if c.Ring.FadeInSteps < 1 {
		return errors.ValidationError("fade_in_steps must be at least 1").Build()
	}
	for _, ms := range c.Ring.VibrationPatternMS {
		if ms < 0 {
			return errors.ValidationError("vibration pattern durations must be non-negative").Build()
		}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.ValidationError("logging format must be text or json").
			WithContext("format", c.Logging.Format).Build()
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.ValidationError("unknown logging level").
			WithContext("level", c.Logging.Level).Build()
	}
	return nil
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	example := Default()
	example.Bridge.NATSURL = "nats://localhost:4222"
	example.Metrics.Addr = ":9090"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryPersistence, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}

func defaultStatePath(backend string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	name := "alarms.json"
	if backend == "sqlite" {
		name = "alarms.db"
	}
	return dir + "/compactalarm/" + name
}
