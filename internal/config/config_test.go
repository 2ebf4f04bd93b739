package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected gemini, got %s", cfg.LLM.Provider)
	}
	if cfg.Broker.URL != "http://localhost:3000" {
		t.Errorf("expected default broker url, got %s", cfg.Broker.URL)
	}
	if cfg.Retry.MaxAttempts != 10 {
		t.Errorf("expected 10 attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Manager.Strategy != "round_robin" {
		t.Errorf("expected round_robin, got %s", cfg.Manager.Strategy)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[broker]
url = "http://broker.internal:9000"

[manager]
strategy = "ai"

[rate_limit]
rpm = 30
tpm = 100000
`), 0644)

	cfg := Load(path)
	if cfg.Broker.URL != "http://broker.internal:9000" {
		t.Errorf("expected broker.internal, got %s", cfg.Broker.URL)
	}
	if cfg.Manager.Strategy != "ai" {
		t.Errorf("expected ai, got %s", cfg.Manager.Strategy)
	}
	if cfg.RateLimit.RPM != 30 || cfg.RateLimit.TPM != 100000 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	// Defaults preserved
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("default should be preserved, got %s", cfg.LLM.Provider)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PARLEY_BROKER_URL", "http://env-broker:3000")
	t.Setenv("PARLEY_LLM_API_KEY", "env-key")
	t.Setenv("PARLEY_OBSERVER_ENABLED", "1")

	cfg := Load("/nonexistent/path.toml")
	if cfg.Broker.URL != "http://env-broker:3000" {
		t.Errorf("expected env broker, got %s", cfg.Broker.URL)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.LLM.APIKey)
	}
	if !cfg.Observer.Enabled {
		t.Error("expected observer enabled from env")
	}
}
