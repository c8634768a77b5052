package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults are valid", func(c *Config) {}, nil},
		{
			"no backend enabled",
			func(c *Config) {
				c.Backends.Ollama.Enabled = false
				c.Backends.Gemini.Enabled = false
			},
			ErrNoBackend,
		},
		{
			"gemini without key",
			func(c *Config) {
				c.Backends.Gemini.Enabled = true
				c.Backends.Gemini.APIKey = ""
			},
			ErrMissingAuth,
		},
		{
			"non-positive healing attempts",
			func(c *Config) { c.Healing.MaxAttempts = 0 },
			ConfigError("healing.max_attempts must be positive"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CODELOOM_BACKEND", "gemini")
	t.Setenv("CODELOOM_MODEL", "gemini-2.5-pro")
	t.Setenv("CODELOOM_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if !cfg.Backends.Gemini.Enabled || cfg.Backends.Gemini.APIKey != "test-key" {
		t.Errorf("gemini = %+v, want enabled with test-key", cfg.Backends.Gemini)
	}
	if cfg.Backends.Default != "gemini" {
		t.Errorf("default backend = %q", cfg.Backends.Default)
	}
	if cfg.Backends.Gemini.Model != "gemini-2.5-pro" {
		t.Errorf("gemini model = %q", cfg.Backends.Gemini.Model)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadFromFileExpandsEnv(t *testing.T) {
	t.Setenv("TEST_OLLAMA_URL", "http://remote:11434")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "backends:\n  ollama:\n    base_url: ${TEST_OLLAMA_URL}\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if cfg.Backends.Ollama.BaseURL != "http://remote:11434" {
		t.Errorf("base_url = %q", cfg.Backends.Ollama.BaseURL)
	}
	// Untouched fields keep their defaults.
	if cfg.Backends.Ollama.Model != "qwen2.5-coder:7b" {
		t.Errorf("model = %q, want default", cfg.Backends.Ollama.Model)
	}
}
