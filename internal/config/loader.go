package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			// Config file is optional, don't fail if it doesn't exist
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	loadFromEnv(cfg)

	return cfg, nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "codeloom", "config.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(homeDir, ".config", "codeloom", "config.yaml")
}

// ConfigDir returns the directory holding the config file and run artifacts
// (graph store, logs). It is created on demand.
func ConfigDir() (string, error) {
	path := getConfigPath()
	if path == "" {
		return "", fmt.Errorf("could not determine config directory")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func loadFromEnv(cfg *Config) {
	if key := os.Getenv("CODELOOM_GEMINI_KEY"); key != "" {
		cfg.Backends.Gemini.APIKey = key
		cfg.Backends.Gemini.Enabled = true
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Backends.Gemini.APIKey = key
		cfg.Backends.Gemini.Enabled = true
	}

	if key := os.Getenv("CODELOOM_OLLAMA_KEY"); key != "" {
		cfg.Backends.Ollama.APIKey = key
	}
	if url := os.Getenv("CODELOOM_OLLAMA_URL"); url != "" {
		cfg.Backends.Ollama.BaseURL = url
	}

	if backend := os.Getenv("CODELOOM_BACKEND"); backend != "" {
		cfg.Backends.Default = backend
	}
	if model := os.Getenv("CODELOOM_MODEL"); model != "" {
		switch cfg.Backends.Default {
		case "gemini":
			cfg.Backends.Gemini.Model = model
		default:
			cfg.Backends.Ollama.Model = model
		}
	}

	if level := os.Getenv("CODELOOM_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Backends.Ollama.Enabled && !c.Backends.Gemini.Enabled {
		return ErrNoBackend
	}
	if c.Backends.Gemini.Enabled && c.Backends.Gemini.APIKey == "" {
		return ErrMissingAuth
	}
	if c.Healing.MaxAttempts <= 0 {
		return ConfigError("healing.max_attempts must be positive")
	}
	return nil
}

// ConfigError is an error from configuration validation.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrNoBackend   ConfigError = "no model backend enabled: enable ollama or gemini in config"
	ErrMissingAuth ConfigError = "missing authentication: set GEMINI_API_KEY or CODELOOM_GEMINI_KEY environment variable"
)

// Save saves the configuration to the config file.
func (c *Config) Save() error {
	configPath := getConfigPath()
	if configPath == "" {
		return fmt.Errorf("could not determine config path")
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to a temp file then rename; config may contain API keys, so 0600.
	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
