// Package config loads application configuration for the parley commands:
// defaults, then a TOML file, then environment variables (env wins).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Broker    BrokerConfig    `toml:"broker"`
	LLM       LLMConfig       `toml:"llm"`
	Manager   ManagerConfig   `toml:"manager"`
	Retry     RetryConfig     `toml:"retry"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Game      GameConfig      `toml:"game"`
	Observer  ObserverConfig  `toml:"observer"`
}

type BrokerConfig struct {
	URL                 string `toml:"url"`
	LoginTimeoutSeconds int    `toml:"login_timeout_seconds"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type ManagerConfig struct {
	Strategy string `toml:"strategy"` // "round_robin", "random", "ai"
}

type RetryConfig struct {
	MaxAttempts      int `toml:"max_attempts"`
	BaseDelaySeconds int `toml:"base_delay_seconds"`
	MaxDelaySeconds  int `toml:"max_delay_seconds"`
}

type RateLimitConfig struct {
	RPM int `toml:"rpm"`
	TPM int `toml:"tpm"`
}

type GameConfig struct {
	VillageChat string `toml:"village_chat"`
	WolvesChat  string `toml:"wolves_chat"`
	SaveDir     string `toml:"save_dir"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Broker:    BrokerConfig{URL: "http://localhost:3000", LoginTimeoutSeconds: 10},
		LLM:       LLMConfig{Provider: "gemini", Model: "gemini-2.5-flash"},
		Manager:   ManagerConfig{Strategy: "round_robin"},
		Retry:     RetryConfig{MaxAttempts: 10, BaseDelaySeconds: 5, MaxDelaySeconds: 120},
		RateLimit: RateLimitConfig{RPM: 60},
		Game:      GameConfig{VillageChat: "村民会议", WolvesChat: "狼人会议", SaveDir: "transcripts"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "parley.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("PARLEY_BROKER_URL"); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv("PARLEY_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("PARLEY_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("PARLEY_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("PARLEY_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("PARLEY_MANAGER_STRATEGY"); v != "" {
		cfg.Manager.Strategy = v
	}
	if os.Getenv("PARLEY_OBSERVER_ENABLED") == "true" || os.Getenv("PARLEY_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
