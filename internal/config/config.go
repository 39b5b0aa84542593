// Package config loads the hardware monitor configuration.
//
// Configuration comes from a single file named by the --config flag or the
// HWMONITOR_CONFIG environment variable. Without either, Default is used.
// There is no automatic discovery.
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas allowed. Anything else is read as YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/jeremyforan/hwmonitor/hwmonitor"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "HWMONITOR_CONFIG"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the monitor configuration.
type Config struct {
	// Interval is the pause between ticks, as a Go duration string.
	// Default: 1s
	Interval string `yaml:"interval" json:"interval"`

	// MaxTicks stops the monitor after this many ticks. Zero runs until
	// the process is interrupted.
	MaxTicks uint64 `yaml:"max_ticks" json:"max_ticks"`

	// Strict reports duplicate registrations and unknown deregistrations
	// as errors instead of ignoring them.
	Strict bool `yaml:"strict" json:"strict"`

	// Observers lists the observer kinds to register, in order.
	// Default: fault, performance, fdr
	Observers []string `yaml:"observers" json:"observers"`

	// Deregister lists observer kinds removed again after registration.
	Deregister []string `yaml:"deregister" json:"deregister"`

	// PowerController registers the power monitor controller as an
	// additional observer.
	PowerController bool `yaml:"power_controller" json:"power_controller"`

	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig configures the structured logger on stderr.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level" json:"level"`

	// Format is text or json. Default: text
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	observers := make([]string, 0, len(hwmonitor.Kinds()))
	for _, kind := range hwmonitor.Kinds() {
		observers = append(observers, string(kind))
	}

	return &Config{
		Interval:  "1s",
		Observers: observers,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file named by HWMONITOR_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile overlays the file at path onto Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// IntervalDuration parses Interval.
func (c *Config) IntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, fmt.Errorf("%w: interval: %v", ErrInvalidConfig, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, c.Interval)
	}
	return d, nil
}

// ObserverKinds parses Observers.
func (c *Config) ObserverKinds() ([]hwmonitor.Kind, error) {
	return parseKinds("observers", c.Observers)
}

// DeregisterKinds parses Deregister.
func (c *Config) DeregisterKinds() ([]hwmonitor.Kind, error) {
	return parseKinds("deregister", c.Deregister)
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.IntervalDuration(); err != nil {
		errs = append(errs, err)
	}

	if len(c.Observers) == 0 && !c.PowerController {
		errs = append(errs, fmt.Errorf("%w: at least one observer is required", ErrInvalidConfig))
	}
	if _, err := c.ObserverKinds(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.DeregisterKinds(); err != nil {
		errs = append(errs, err)
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("%w: log.level must be one of: %v", ErrInvalidConfig, logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("%w: log.format must be one of: %v", ErrInvalidConfig, logFormats))
	}

	return errors.Join(errs...)
}

func parseKinds(field string, names []string) ([]hwmonitor.Kind, error) {
	kinds := make([]hwmonitor.Kind, 0, len(names))
	for _, name := range names {
		kind, err := hwmonitor.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, field, err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
