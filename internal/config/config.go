package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources  Sources  `yaml:"sources"`
	Analysis Analysis `yaml:"analysis"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed `yaml:"feeds"`
}

type Feed struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"` // nil means enabled
}

// IsEnabled reports whether the feed should be fetched.
func (f Feed) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

type Analysis struct {
	Model             string   `yaml:"model"`
	FallbackModels    []string `yaml:"fallback_models"`
	BaseURL           string   `yaml:"base_url"`
	APIKeyEnv         string   `yaml:"api_key_env"`
	MaxTokens         int      `yaml:"max_tokens"`
	BatchSize         int      `yaml:"batch_size"`
	BatchDelaySeconds int      `yaml:"batch_delay_seconds"`
}

// Models returns the ordered candidate model list: the preferred model
// first, then the fallbacks, with duplicates removed.
func (a Analysis) Models() []string {
	seen := make(map[string]struct{})
	var models []string
	for _, m := range append([]string{a.Model}, a.FallbackModels...) {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		models = append(models, m)
	}
	return models
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for threatwire.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "threatwire")
}

// DataDir returns the XDG data directory for threatwire.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "threatwire")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/threatwire/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'threatwire init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Analysis: Analysis{
			Model: "google/gemini-2.0-flash-001",
			FallbackModels: []string{
				"meta-llama/llama-3.3-70b-instruct",
				"mistralai/mistral-small-3.1-24b-instruct",
			},
			BaseURL:           "https://openrouter.ai/api/v1",
			APIKeyEnv:         "OPENROUTER_API_KEY",
			MaxTokens:         4096,
			BatchSize:         3,
			BatchDelaySeconds: 5,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
