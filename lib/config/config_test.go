// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.AS.ListenAddr != ":7001" {
		t.Errorf("expected as.listen_addr=:7001, got %s", cfg.AS.ListenAddr)
	}

	if cfg.DS.ASAddr != "127.0.0.1:7001" {
		t.Errorf("expected ds.as_addr=127.0.0.1:7001, got %s", cfg.DS.ASAddr)
	}

	if cfg.Client.Mode != GovernanceMode {
		t.Errorf("expected client.mode=governance, got %s", cfg.Client.Mode)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() should be valid: %v", err)
	}
}

func TestLoad_RequiresMlsgovConfig(t *testing.T) {
	origConfig := os.Getenv("MLSGOV_CONFIG")
	defer os.Setenv("MLSGOV_CONFIG", origConfig)

	os.Unsetenv("MLSGOV_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when MLSGOV_CONFIG not set, got nil")
	}

	expectedMsg := "MLSGOV_CONFIG environment variable not set"
	if len(err.Error()) < len(expectedMsg) || err.Error()[:len(expectedMsg)] != expectedMsg {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithMlsgovConfig(t *testing.T) {
	origConfig := os.Getenv("MLSGOV_CONFIG")
	defer os.Setenv("MLSGOV_CONFIG", origConfig)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mlsgov.yaml")

	configContent := `
environment: staging
as:
  listen_addr: ":9001"
ds:
  listen_addr: ":9002"
  as_addr: "127.0.0.1:9001"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	os.Setenv("MLSGOV_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.AS.ListenAddr != ":9001" {
		t.Errorf("expected as.listen_addr=:9001, got %s", cfg.AS.ListenAddr)
	}
	if cfg.DS.ListenAddr != ":9002" {
		t.Errorf("expected ds.listen_addr=:9002, got %s", cfg.DS.ListenAddr)
	}
	// Fields not present in the file should retain their defaults.
	if cfg.DS.MaxKeyPackagesPerUser != 32 {
		t.Errorf("expected ds.max_key_packages_per_user=32 (default), got %d", cfg.DS.MaxKeyPackagesPerUser)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/mlsgov.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestApplyEnvironmentOverrides_Production(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mlsgov.yaml")

	configContent := `
environment: production
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	// Production gets stricter defaults when no explicit overrides are given.
	if cfg.DS.MaxKeyPackagesPerUser != 16 {
		t.Errorf("expected production default ds.max_key_packages_per_user=16, got %d", cfg.DS.MaxKeyPackagesPerUser)
	}
	if cfg.DS.MaxQueueDepth != 128 {
		t.Errorf("expected production default ds.max_queue_depth=128, got %d", cfg.DS.MaxQueueDepth)
	}
}

func TestApplyEnvironmentOverrides_ExplicitWins(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mlsgov.yaml")

	configContent := `
environment: production
ds:
  max_key_packages_per_user: 8
production:
  ds:
    max_key_packages_per_user: 4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.DS.MaxKeyPackagesPerUser != 4 {
		t.Errorf("expected explicit production override to win: got %d, want 4", cfg.DS.MaxKeyPackagesPerUser)
	}
}

func TestExpandVariables(t *testing.T) {
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", "/home/tester")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mlsgov.yaml")

	configContent := `
environment: development
client:
  state_dir: "${HOME}/.mlsgov/client"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	want := "/home/tester/.mlsgov/client"
	if cfg.Client.StateDir != want {
		t.Errorf("expected client.state_dir=%s, got %s", want, cfg.Client.StateDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"bad environment", func(c *Config) { c.Environment = "bogus" }, true},
		{"missing as listen addr", func(c *Config) { c.AS.ListenAddr = "" }, true},
		{"missing ds listen addr", func(c *Config) { c.DS.ListenAddr = "" }, true},
		{"missing ds as addr", func(c *Config) { c.DS.ASAddr = "" }, true},
		{"zero key packages", func(c *Config) { c.DS.MaxKeyPackagesPerUser = 0 }, true},
		{"negative queue depth", func(c *Config) { c.DS.MaxQueueDepth = -1 }, true},
		{"bad client mode", func(c *Config) { c.Client.Mode = "chaotic" }, true},
		{"bad duration", func(c *Config) { c.DS.GCSweepInterval = "not-a-duration" }, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !test.wantErr && err != nil {
				t.Errorf("expected no validation error, got %v", err)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Default()
	cfg.AS.StateDir = filepath.Join(tmpDir, "as")
	cfg.DS.StateDir = filepath.Join(tmpDir, "ds")
	cfg.Client.StateDir = filepath.Join(tmpDir, "client")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}

	for _, path := range []string{cfg.AS.StateDir, cfg.DS.StateDir, cfg.Client.StateDir} {
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			t.Errorf("expected directory at %s", path)
		}
	}
}
