package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Tuning    TuningConfig    `yaml:"tuning"`
}

type ProvidersConfig struct {
	Default  string                    `yaml:"default,omitempty"`
	Profiles map[string]ProviderConfig `yaml:"profiles,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	System  string `yaml:"system,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type TuningConfig struct {
	MaxAttempts    int           `yaml:"max_attempts,omitempty"`
	BaseDelay      time.Duration `yaml:"base_delay,omitempty"`
	MaxDelay       time.Duration `yaml:"max_delay,omitempty"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout,omitempty"`
}

// envKeys maps provider names to the env vars that can supply their
// credential, in priority order.
var envKeys = map[string][]string{
	"openai":      {"OPENAI_API_KEY"},
	"anthropic":   {"ANTHROPIC_API_KEY", "ANTHROPIC_AUTH_TOKEN"},
	"google":      {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"cohere":      {"COHERE_API_KEY", "CO_API_KEY"},
	"huggingface": {"HF_TOKEN", "HUGGINGFACE_API_KEY"},
	"groq":        {"GROQ_API_KEY"},
	"openrouter":  {"OPENROUTER_API_KEY"},
}

// Load reads and parses the config file, then applies env-var credential
// overrides. A missing file is not an error when path is the default: env
// vars alone are enough to tune prompts against a vendor.
func Load(path string) (*Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if cfg.Providers.Profiles == nil {
		cfg.Providers.Profiles = make(map[string]ProviderConfig)
	}

	for name, keys := range envKeys {
		for _, key := range keys {
			v := strings.TrimSpace(os.Getenv(key))
			if v == "" {
				continue
			}
			p := cfg.Providers.Profiles[name]
			p.APIKey = v
			cfg.Providers.Profiles[name] = p
			break
		}
	}

	if strings.TrimSpace(cfg.Providers.Default) == "" {
		cfg.Providers.Default = "openai"
	}

	return &cfg, nil
}
