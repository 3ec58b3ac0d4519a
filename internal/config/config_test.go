package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `chat_base_url: http://chat.example.com
store_base_url: http://store.example.com
tool_endpoint: ws://tools.example.com/run
agent: planner
model: large
request_timeout: 90s
rate_per_second: 5
include_journal: false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ChatBaseURL != "http://chat.example.com" {
		t.Errorf("ChatBaseURL = %q", cfg.ChatBaseURL)
	}
	if cfg.ToolEndpoint != "ws://tools.example.com/run" {
		t.Errorf("ToolEndpoint = %q", cfg.ToolEndpoint)
	}
	if cfg.Agent != "planner" || cfg.Model != "large" {
		t.Errorf("agent/model = %q/%q", cfg.Agent, cfg.Model)
	}
	if cfg.RequestTimeout != 90*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.RatePerSecond != 5 {
		t.Errorf("RatePerSecond = %v", cfg.RatePerSecond)
	}
	if cfg.IncludeJournal {
		t.Error("IncludeJournal should be false")
	}
	// Unset fields keep their defaults.
	if cfg.DBPath != "taskchat.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if !cfg.IncludeTasks {
		t.Error("IncludeTasks should default to true")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("chat_base_url: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := Default()
	cfg.ChatBaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty chat_base_url")
	}

	cfg = Default()
	cfg.ToolEndpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty tool_endpoint")
	}
}

func TestValidateBackfillsZeroValues(t *testing.T) {
	cfg := Config{
		ChatBaseURL:  "http://chat",
		StoreBaseURL: "http://store",
		ToolEndpoint: "http://tools",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.Burst != 4 {
		t.Errorf("Burst = %d", cfg.Burst)
	}
	if cfg.Agent != "assistant" {
		t.Errorf("Agent = %q", cfg.Agent)
	}
}
