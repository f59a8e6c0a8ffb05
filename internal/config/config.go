// Package config loads and validates the orchestrator configuration.
// The YAML file is env-expanded before parsing so secrets can live in the
// environment or a .env file.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Repo     RepoConfig     `yaml:"repo"`
	Remote   RemoteConfig   `yaml:"remote"`
	Units    UnitsConfig    `yaml:"units"`
	Build    BuildConfig    `yaml:"build"`
	Publish  PublishConfig  `yaml:"publish"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Notify   NotifyConfig   `yaml:"notify"`
	StateDB  string         `yaml:"state_db"`
}

// RepoConfig names the published repository.
type RepoConfig struct {
	Name      string `yaml:"name"`       // repository/database name, e.g. manjaro-awesome
	RemoteDir string `yaml:"remote_dir"` // directory on the remote host
	ServerURL string `yaml:"server_url"` // public URL clients fetch from
}

// RemoteConfig describes the SSH endpoint artifacts are synced to.
type RemoteConfig struct {
	Host    string `yaml:"host"`
	User    string `yaml:"user"`
	Port    int    `yaml:"port"`
	KeyPath string `yaml:"key_path,omitempty"`
}

// Addr returns the user@host form used by ssh/scp.
func (r RemoteConfig) Addr() string { return r.User + "@" + r.Host }

// UnitOrder controls which origin class is processed first.
type UnitOrder string

const (
	OrderRemoteFirst UnitOrder = "remote-first"
	OrderLocalFirst  UnitOrder = "local-first"
)

// LocalUnit is a build unit whose recipe lives in this repository checkout.
type LocalUnit struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir,omitempty"` // defaults to ./<name>
}

// AURUnit is a build unit whose recipe is cloned from the AUR.
type AURUnit struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url,omitempty"` // defaults to https://aur.archlinux.org/<name>.git
}

// UnitsConfig lists the build units and their processing order.
type UnitsConfig struct {
	Local []LocalUnit `yaml:"local,omitempty"`
	AUR   []AURUnit   `yaml:"aur,omitempty"`
	Order UnitOrder   `yaml:"order,omitempty"`
}

// TimeoutsConfig holds the wall-clock timeout classes for builds.
type TimeoutsConfig struct {
	Default Duration            `yaml:"default"`
	Large   Duration            `yaml:"large"`
	PerUnit map[string]Duration `yaml:"per_unit,omitempty"`
}

// RetryConfig holds bounded-retry settings for transient operations.
type RetryConfig struct {
	MaxRetries   int      `yaml:"max_retries"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Backoff      string   `yaml:"backoff,omitempty"` // fixed|linear|exponential
}

// BuildConfig controls build execution.
type BuildConfig struct {
	WorkDir       string              `yaml:"work_dir,omitempty"`
	OutputDir     string              `yaml:"output_dir,omitempty"`
	Timeouts      TimeoutsConfig      `yaml:"timeouts"`
	LargeUnits    []string            `yaml:"large_units,omitempty"`
	ExtraDepends  map[string][]string `yaml:"extra_depends,omitempty"`
	StripDepends  map[string][]string `yaml:"strip_depends,omitempty"`
	RequiredTools []string            `yaml:"required_tools,omitempty"`
	Retry         RetryConfig         `yaml:"retry"`
}

// PublishConfig controls index regeneration, upload and retention.
type PublishConfig struct {
	Retention int      `yaml:"retention"` // versions kept per unit on the remote
	Attempts  int      `yaml:"attempts"`  // upload attempts
	Delay     Duration `yaml:"delay"`     // delay between upload attempts
	PushBumps bool     `yaml:"push_bumps"`
}

// PipelineConfig controls run-level failure policy.
type PipelineConfig struct {
	// StopOnFailure aborts the run on the first failed unit and propagates a
	// publish failure as a run error. By default failures are reported in the
	// summary and the run itself still succeeds.
	StopOnFailure bool `yaml:"stop_on_failure"`
}

// DaemonConfig controls the periodic runner.
type DaemonConfig struct {
	Interval    Duration `yaml:"interval"`
	MetricsAddr string   `yaml:"metrics_addr,omitempty"`
}

// NotifyConfig controls optional NATS run-summary events.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load reads, env-expands and parses the configuration file, then applies
// defaults and validates.
func Load(path string) (*Config, error) {
	// Best effort: a missing .env is the normal case outside CI.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Repo.Name == "" {
		return fmt.Errorf("repo.name is required")
	}
	if c.Remote.Host == "" {
		return fmt.Errorf("remote.host is required")
	}
	if c.Remote.User == "" {
		return fmt.Errorf("remote.user is required")
	}
	if len(c.Units.Local) == 0 && len(c.Units.AUR) == 0 {
		return fmt.Errorf("at least one build unit must be configured")
	}
	seen := make(map[string]bool)
	for _, u := range c.Units.Local {
		if u.Name == "" {
			return fmt.Errorf("local unit with empty name")
		}
		if seen[u.Name] {
			return fmt.Errorf("duplicate unit name %q", u.Name)
		}
		seen[u.Name] = true
	}
	for _, u := range c.Units.AUR {
		if u.Name == "" {
			return fmt.Errorf("aur unit with empty name")
		}
		if seen[u.Name] {
			return fmt.Errorf("duplicate unit name %q", u.Name)
		}
		seen[u.Name] = true
	}
	if c.Notify.Enabled && c.Notify.URL == "" {
		return fmt.Errorf("notify.url is required when notify.enabled is set")
	}
	return nil
}
