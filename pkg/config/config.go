package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig carries the global pipeline settings. Endpoint definitions live
// in their own document (see pkg/endpoint).
type AppConfig struct {
	ProjectID string `yaml:"projectId"`

	API struct {
		BaseURL string `yaml:"baseUrl"`
	} `yaml:"api"`

	Secret struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"secret"`

	Warehouse struct {
		Path    string `yaml:"path"`
		Dataset string `yaml:"dataset"`
	} `yaml:"warehouse"`

	Fetch struct {
		Workers int `yaml:"workers"`
	} `yaml:"fetch"`

	LogLevel string `yaml:"logLevel"`
}

// Load reads and parses a YAML config file into an AppConfig struct,
// applying defaults first and environment overrides last. It terminates the
// program if the file is not found or invalid.
func Load(path string) AppConfig {
	cfg := AppConfig{LogLevel: "INFO"}
	cfg.Secret.Version = "latest"
	cfg.Fetch.Workers = 1

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatalf("Config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("Error parsing config file: %v", err)
	}

	applyEnvOverrides(&cfg)
	return cfg
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the config document.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
	if v := os.Getenv("INVEZGO_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SECRET_NAME"); v != "" {
		cfg.Secret.Name = v
	}
	if v := os.Getenv("SECRET_VERSION"); v != "" {
		cfg.Secret.Version = v
	}
	if v := os.Getenv("WAREHOUSE_PATH"); v != "" {
		cfg.Warehouse.Path = v
	}
	if v := os.Getenv("WAREHOUSE_DATASET"); v != "" {
		cfg.Warehouse.Dataset = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
