package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"callsheet/internal/phase"
)

// Config models callsheet.yml.
type Config struct {
	Org struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"org"`
	Sweep     SweepConfig        `yaml:"sweep"`
	Readiness ReadinessConfig    `yaml:"readiness"`
	Defaults  SchedulingDefaults `yaml:"defaults"`
}

// SweepConfig controls the periodic automatic-transition pass.
type SweepConfig struct {
	Enabled         bool     `yaml:"enabled"`
	IntervalSeconds int      `yaml:"interval_seconds"`
	DryRun          bool     `yaml:"dry_run"`
	EnabledPhases   []string `yaml:"enabled_phases"`
}

// ReadinessConfig points at the external readiness feed, if any.
type ReadinessConfig struct {
	URL            string `yaml:"url"`
	TokenSecret    string `yaml:"token_secret"`
	Issuer         string `yaml:"issuer"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SchedulingDefaults is the default per-project scheduling configuration.
// It is constructed once from config and passed explicitly to the components
// that need it; there is no global singleton.
type SchedulingDefaults struct {
	AutoTransitionsEnabled bool `yaml:"auto_transitions_enabled"`
	ArchiveMonth           int  `yaml:"archive_month"`
	ArchiveDay             int  `yaml:"archive_day"`
	PostShowTransitionHour int  `yaml:"post_show_transition_hour"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.ID == "" {
		return fmt.Errorf("config.org.id is required")
	}
	if c.Org.Timezone != "" {
		if _, err := time.LoadLocation(c.Org.Timezone); err != nil {
			return fmt.Errorf("config.org.timezone %q is not a valid IANA identifier", c.Org.Timezone)
		}
	}
	if c.Sweep.IntervalSeconds <= 0 {
		return fmt.Errorf("config.sweep.interval_seconds must be positive")
	}
	for _, p := range c.Sweep.EnabledPhases {
		if !phase.Valid(phase.Phase(p)) {
			return fmt.Errorf("config.sweep.enabled_phases contains unknown phase %q", p)
		}
	}
	d := c.Defaults
	if d.ArchiveMonth < 1 || d.ArchiveMonth > 12 {
		return fmt.Errorf("config.defaults.archive_month must be 1-12")
	}
	if d.ArchiveDay < 1 || d.ArchiveDay > 31 {
		return fmt.Errorf("config.defaults.archive_day must be 1-31")
	}
	if d.PostShowTransitionHour < 0 || d.PostShowTransitionHour > 23 {
		return fmt.Errorf("config.defaults.post_show_transition_hour must be 0-23")
	}
	return nil
}

// SweepPhases returns the enabled-phase set for the automatic evaluator.
func (c *Config) SweepPhases() map[phase.Phase]bool {
	set := make(map[phase.Phase]bool, len(c.Sweep.EnabledPhases))
	for _, p := range c.Sweep.EnabledPhases {
		set[phase.Phase(p)] = true
	}
	return set
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "callsheet.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with cs config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `org:
  id: default-org
  name: Default Org
  timezone: America/New_York

sweep:
  enabled: true
  interval_seconds: 300
  dry_run: false
  enabled_phases: [pre_show, active, post_show, complete]

readiness:
  url: ""
  token_secret: ""
  issuer: callsheet
  timeout_seconds: 5

defaults:
  auto_transitions_enabled: true
  archive_month: 4
  archive_day: 1
  post_show_transition_hour: 6
`
