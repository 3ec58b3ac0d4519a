package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from the optional
// YAML file with command-line flags layered on top.
type Config struct {
	ChatBaseURL  string `yaml:"chat_base_url"`  // streaming + fallback chat endpoints
	StoreBaseURL string `yaml:"store_base_url"` // tasks, checklists, journal
	ToolEndpoint string `yaml:"tool_endpoint"`  // http(s):// or ws(s)://

	Agent string `yaml:"agent"`
	Model string `yaml:"model"`

	DBPath  string `yaml:"db_path"`
	LogDir  string `yaml:"log_dir"`
	Verbose bool   `yaml:"verbose"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	Burst          int           `yaml:"burst"`

	IncludeTasks      bool `yaml:"include_tasks"`
	IncludeChecklists bool `yaml:"include_checklists"`
	IncludeJournal    bool `yaml:"include_journal"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ChatBaseURL:       "http://localhost:8080",
		StoreBaseURL:      "http://localhost:8081",
		ToolEndpoint:      "http://localhost:8082/api/tools/run",
		Agent:             "assistant",
		Model:             "default",
		DBPath:            "taskchat.db",
		LogDir:            "logs",
		RequestTimeout:    60 * time.Second,
		RatePerSecond:     2,
		Burst:             4,
		IncludeTasks:      true,
		IncludeChecklists: true,
		IncludeJournal:    true,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and backfills zero values with defaults.
func (c *Config) Validate() error {
	if c.ChatBaseURL == "" {
		return fmt.Errorf("chat_base_url is required")
	}
	if c.StoreBaseURL == "" {
		return fmt.Errorf("store_base_url is required")
	}
	if c.ToolEndpoint == "" {
		return fmt.Errorf("tool_endpoint is required")
	}
	if c.Agent == "" {
		c.Agent = "assistant"
	}
	if c.Model == "" {
		c.Model = "default"
	}
	if c.DBPath == "" {
		c.DBPath = "taskchat.db"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 2
	}
	if c.Burst <= 0 {
		c.Burst = 4
	}
	return nil
}
