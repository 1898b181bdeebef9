// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for mlsgov components.
//
// Configuration is loaded from a single file specified by:
//   - MLSGOV_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// FeatureMode selects whether the client's Action Pipeline runs the
// full governance stack (RBAC + Policy Engine) or the baseline
// equivalence path (actions applied immediately, no role checks, no
// policies). Baseline mode exists to validate that governance adds
// behavior rather than silently changing it: the same action sequence
// must produce the same final group state either way.
type FeatureMode string

const (
	// GovernanceMode runs every outgoing and incoming action through
	// RBAC and the Policy Engine.
	GovernanceMode FeatureMode = "governance"
	// BaselineMode skips RBAC and the Policy Engine entirely.
	BaselineMode FeatureMode = "baseline"
)

// Config is the master configuration for mlsgov. A single file can
// configure all three actors (Authentication Service, Delivery
// Service, Client) because development setups frequently run all
// three from one config; each cmd/ binary reads only the section it
// needs.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// AS configures the Authentication Service.
	AS ASConfig `yaml:"as"`

	// DS configures the Delivery Service.
	DS DSConfig `yaml:"ds"`

	// Client configures the per-user client.
	Client ClientConfig `yaml:"client"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	AS     *ASConfig     `yaml:"as,omitempty"`
	DS     *DSConfig     `yaml:"ds,omitempty"`
	Client *ClientConfig `yaml:"client,omitempty"`
}

// ASConfig configures the Authentication Service.
type ASConfig struct {
	// ListenAddr is the TCP address the Authentication Service
	// listens on (e.g., ":7001").
	ListenAddr string `yaml:"listen_addr"`

	// StateDir holds the AS's Ed25519 signing keypair and the
	// credential store snapshot.
	StateDir string `yaml:"state_dir"`

	// SnapshotInterval is how often the credential store is
	// persisted to StateDir, expressed as a Go duration string
	// (e.g., "30s").
	SnapshotInterval string `yaml:"snapshot_interval"`

	// AdminListenAddr is a second TCP address, separate from
	// ListenAddr, serving only the operator-issued deplatform
	// request. deplatform(cred) is specified as an MS-DS operation,
	// not a client one, and the system models no MS authentication —
	// operators are expected to bind this listener to a loopback or
	// otherwise trusted-network address and leave it unexposed to
	// ordinary clients. Empty disables the admin listener entirely.
	AdminListenAddr string `yaml:"admin_listen_addr"`

	// DSAddr is the Delivery Service address deplatform notices are
	// pushed to after an operator's AdminDeplatform request succeeds.
	DSAddr string `yaml:"ds_addr"`
}

// DSConfig configures the Delivery Service.
type DSConfig struct {
	// ListenAddr is the TCP address the Delivery Service listens on.
	ListenAddr string `yaml:"listen_addr"`

	// StateDir holds the DS's persisted block list snapshot. Group
	// and user state is not persisted.
	StateDir string `yaml:"state_dir"`

	// ASAddr is the Authentication Service address the Delivery
	// Service syncs credential deltas and deplatform notices from.
	ASAddr string `yaml:"as_addr"`

	// ASPublicKey is the Authentication Service's hex-encoded Ed25519
	// public key, pinned out of band (this is the one trust anchor
	// the Delivery Service cannot bootstrap for itself — it must know
	// whose signature on a DeplatformNotice to believe before it has
	// synced a single credential). Required; there is no discovery
	// mechanism for it.
	ASPublicKey string `yaml:"as_public_key"`

	// SnapshotInterval is how often the block list is persisted to
	// StateDir, expressed as a Go duration string.
	SnapshotInterval string `yaml:"snapshot_interval"`

	// GCSweepInterval is how often the ordered log and unordered
	// queues are swept for fully-delivered entries, expressed as a
	// Go duration string.
	GCSweepInterval string `yaml:"gc_sweep_interval"`

	// MaxKeyPackagesPerUser bounds the per-user KeyPackage pool; an
	// upload that would exceed this limit is rejected with a capacity
	// error and nothing is added to the pool.
	MaxKeyPackagesPerUser int `yaml:"max_key_packages_per_user"`

	// MaxQueueDepth bounds the unordered and invite queue length per
	// user; sends beyond this limit fail with a Capacity error.
	MaxQueueDepth int `yaml:"max_queue_depth"`
}

// ClientConfig configures a per-user client.
type ClientConfig struct {
	// ASAddr is the Authentication Service address used for
	// registration and credential lookups.
	ASAddr string `yaml:"as_addr"`

	// DSAddr is the Delivery Service address used for all message
	// traffic.
	DSAddr string `yaml:"ds_addr"`

	// StateDir holds the client's identity key, MLS group state, and
	// local message history.
	StateDir string `yaml:"state_dir"`

	// Mode selects governance or baseline operation for the Action
	// Pipeline. Default: governance.
	Mode FeatureMode `yaml:"mode"`

	// SyncInterval is how often the client's background loop polls
	// the Delivery Service for queued and ordered-log traffic,
	// expressed as a Go duration string.
	SyncInterval string `yaml:"sync_interval"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "mlsgov")

	return &Config{
		Environment: Development,
		AS: ASConfig{
			ListenAddr:       ":7001",
			StateDir:         filepath.Join(defaultRoot, "as"),
			SnapshotInterval: "30s",
			DSAddr:           "127.0.0.1:7002",
		},
		DS: DSConfig{
			ListenAddr:            ":7002",
			StateDir:              filepath.Join(defaultRoot, "ds"),
			ASAddr:                "127.0.0.1:7001",
			SnapshotInterval:      "30s",
			GCSweepInterval:       "10s",
			MaxKeyPackagesPerUser: 32,
			MaxQueueDepth:         256,
		},
		Client: ClientConfig{
			ASAddr:       "127.0.0.1:7001",
			DSAddr:       "127.0.0.1:7002",
			StateDir:     filepath.Join(defaultRoot, "client"),
			Mode:         GovernanceMode,
			SyncInterval: "5s",
		},
	}
}

// Load loads configuration from the MLSGOV_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if MLSGOV_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("MLSGOV_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("MLSGOV_CONFIG environment variable not set; " +
			"set it to the path of your mlsgov.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: tighter capacity limits than development.
		if overrides == nil {
			overrides = &ConfigOverrides{
				DS: &DSConfig{
					MaxKeyPackagesPerUser: 16,
					MaxQueueDepth:         128,
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.AS != nil {
		if overrides.AS.ListenAddr != "" {
			c.AS.ListenAddr = overrides.AS.ListenAddr
		}
		if overrides.AS.StateDir != "" {
			c.AS.StateDir = overrides.AS.StateDir
		}
		if overrides.AS.SnapshotInterval != "" {
			c.AS.SnapshotInterval = overrides.AS.SnapshotInterval
		}
		if overrides.AS.AdminListenAddr != "" {
			c.AS.AdminListenAddr = overrides.AS.AdminListenAddr
		}
		if overrides.AS.DSAddr != "" {
			c.AS.DSAddr = overrides.AS.DSAddr
		}
	}

	if overrides.DS != nil {
		if overrides.DS.ListenAddr != "" {
			c.DS.ListenAddr = overrides.DS.ListenAddr
		}
		if overrides.DS.StateDir != "" {
			c.DS.StateDir = overrides.DS.StateDir
		}
		if overrides.DS.ASAddr != "" {
			c.DS.ASAddr = overrides.DS.ASAddr
		}
		if overrides.DS.ASPublicKey != "" {
			c.DS.ASPublicKey = overrides.DS.ASPublicKey
		}
		if overrides.DS.SnapshotInterval != "" {
			c.DS.SnapshotInterval = overrides.DS.SnapshotInterval
		}
		if overrides.DS.GCSweepInterval != "" {
			c.DS.GCSweepInterval = overrides.DS.GCSweepInterval
		}
		if overrides.DS.MaxKeyPackagesPerUser != 0 {
			c.DS.MaxKeyPackagesPerUser = overrides.DS.MaxKeyPackagesPerUser
		}
		if overrides.DS.MaxQueueDepth != 0 {
			c.DS.MaxQueueDepth = overrides.DS.MaxQueueDepth
		}
	}

	if overrides.Client != nil {
		if overrides.Client.ASAddr != "" {
			c.Client.ASAddr = overrides.Client.ASAddr
		}
		if overrides.Client.DSAddr != "" {
			c.Client.DSAddr = overrides.Client.DSAddr
		}
		if overrides.Client.StateDir != "" {
			c.Client.StateDir = overrides.Client.StateDir
		}
		if overrides.Client.Mode != "" {
			c.Client.Mode = overrides.Client.Mode
		}
		if overrides.Client.SyncInterval != "" {
			c.Client.SyncInterval = overrides.Client.SyncInterval
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.AS.StateDir = expandVars(c.AS.StateDir, vars)
	c.DS.StateDir = expandVars(c.DS.StateDir, vars)
	c.Client.StateDir = expandVars(c.Client.StateDir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.AS.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("as.listen_addr is required"))
	}
	if c.DS.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("ds.listen_addr is required"))
	}
	if c.DS.ASAddr == "" {
		errs = append(errs, fmt.Errorf("ds.as_addr is required"))
	}
	if c.DS.ASPublicKey == "" {
		errs = append(errs, fmt.Errorf("ds.as_public_key is required"))
	}
	if c.DS.MaxKeyPackagesPerUser <= 0 {
		errs = append(errs, fmt.Errorf("ds.max_key_packages_per_user must be positive"))
	}
	if c.DS.MaxQueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("ds.max_queue_depth must be positive"))
	}
	if c.Client.Mode != GovernanceMode && c.Client.Mode != BaselineMode {
		errs = append(errs, fmt.Errorf("client.mode must be %q or %q", GovernanceMode, BaselineMode))
	}

	for name, durationString := range map[string]string{
		"as.snapshot_interval": c.AS.SnapshotInterval,
		"ds.snapshot_interval": c.DS.SnapshotInterval,
		"ds.gc_sweep_interval": c.DS.GCSweepInterval,
		"client.sync_interval": c.Client.SyncInterval,
	} {
		if durationString == "" {
			continue
		}
		if _, err := time.ParseDuration(durationString); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured state directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{c.AS.StateDir, c.DS.StateDir, c.Client.StateDir}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
