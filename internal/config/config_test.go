package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}

	if cfg.Analysis.Model != "google/gemini-2.0-flash-001" {
		t.Errorf("expected default model, got %q", cfg.Analysis.Model)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
analysis:
  model: anthropic/claude-sonnet-4
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Analysis.Model != "anthropic/claude-sonnet-4" {
		t.Errorf("expected overridden model, got %q", cfg.Analysis.Model)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Analysis.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("expected default base_url, got %q", cfg.Analysis.BaseURL)
	}
	if cfg.Analysis.BatchSize != 3 {
		t.Errorf("expected default batch_size 3, got %d", cfg.Analysis.BatchSize)
	}
}

func TestAnalysisModels(t *testing.T) {
	a := Analysis{
		Model:          "primary",
		FallbackModels: []string{"fallback-1", "primary", "fallback-2"},
	}
	models := a.Models()
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %d: %v", len(models), models)
	}
	if models[0] != "primary" {
		t.Errorf("expected preferred model first, got %q", models[0])
	}
	if models[1] != "fallback-1" || models[2] != "fallback-2" {
		t.Errorf("unexpected fallback order: %v", models)
	}
}

func TestFeedIsEnabled(t *testing.T) {
	f := Feed{URL: "https://example.com/feed"}
	if !f.IsEnabled() {
		t.Error("expected feed without enabled flag to default to enabled")
	}

	off := false
	f.Enabled = &off
	if f.IsEnabled() {
		t.Error("expected disabled feed to report disabled")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
