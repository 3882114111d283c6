package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigLoading(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.yaml")

	configContent := `
projectId: test-project

api:
  baseUrl: https://api.invezgo.com/

secret:
  name: invezgo-api-token
  version: "3"

warehouse:
  path: /tmp/test/invezgo.duckdb
  dataset: invezgo_data

fetch:
  workers: 4

logLevel: DEBUG
`

	err := os.WriteFile(configPath, []byte(configContent), 0600)
	if err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg := Load(configPath)

	if cfg.ProjectID != "test-project" {
		t.Errorf("Expected project id test-project, got %s", cfg.ProjectID)
	}
	if cfg.API.BaseURL != "https://api.invezgo.com/" {
		t.Errorf("Expected base url https://api.invezgo.com/, got %s", cfg.API.BaseURL)
	}
	if cfg.Secret.Name != "invezgo-api-token" {
		t.Errorf("Expected secret name invezgo-api-token, got %s", cfg.Secret.Name)
	}
	if cfg.Secret.Version != "3" {
		t.Errorf("Expected secret version 3, got %s", cfg.Secret.Version)
	}
	if cfg.Warehouse.Path != "/tmp/test/invezgo.duckdb" {
		t.Errorf("Expected warehouse path /tmp/test/invezgo.duckdb, got %s", cfg.Warehouse.Path)
	}
	if cfg.Warehouse.Dataset != "invezgo_data" {
		t.Errorf("Expected dataset invezgo_data, got %s", cfg.Warehouse.Dataset)
	}
	if cfg.Fetch.Workers != 4 {
		t.Errorf("Expected 4 fetch workers, got %d", cfg.Fetch.Workers)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("Expected log level DEBUG, got %s", cfg.LogLevel)
	}
}

func TestConfigDefaults(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "minimal_config.yaml")

	configContent := `
api:
  baseUrl: https://api.invezgo.com/
secret:
  name: invezgo-api-token
`

	err := os.WriteFile(configPath, []byte(configContent), 0600)
	if err != nil {
		t.Fatalf("Failed to write minimal config: %v", err)
	}

	cfg := Load(configPath)

	if cfg.Secret.Version != "latest" {
		t.Errorf("Expected default secret version latest, got %s", cfg.Secret.Version)
	}
	if cfg.Fetch.Workers != 1 {
		t.Errorf("Expected default of 1 fetch worker, got %d", cfg.Fetch.Workers)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("Expected default log level INFO, got %s", cfg.LogLevel)
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `
api:
  baseUrl: https://api.invezgo.com/
secret:
  name: file-secret
`

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("SECRET_NAME", "env-secret")
	t.Setenv("INVEZGO_API_BASE_URL", "https://staging.invezgo.com/")

	cfg := Load(configPath)

	if cfg.Secret.Name != "env-secret" {
		t.Errorf("Expected env override env-secret, got %s", cfg.Secret.Name)
	}
	if cfg.API.BaseURL != "https://staging.invezgo.com/" {
		t.Errorf("Expected env override base url, got %s", cfg.API.BaseURL)
	}
}
