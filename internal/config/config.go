package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Backends BackendsConfig `yaml:"backends"`
	Agents   AgentsConfig   `yaml:"agents"`
	Graph    GraphConfig    `yaml:"graph"`
	Healing  HealingConfig  `yaml:"healing"`
	Security SecurityConfig `yaml:"security"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Runtime version information
	Version string `yaml:"-"`
}

// BackendsConfig holds model backend settings.
type BackendsConfig struct {
	// Default backend id used when an agent profile doesn't name one.
	Default string `yaml:"default"`

	Ollama OllamaConfig `yaml:"ollama"`
	Gemini GeminiConfig `yaml:"gemini"`

	// Per-call timeout for completions (default: 120s).
	CallTimeout time.Duration `yaml:"call_timeout"`

	// Circuit breaker settings shared by all backends.
	Breaker BreakerConfig `yaml:"breaker"`
}

// OllamaConfig holds settings for the Ollama backend.
type OllamaConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"` // Default: http://localhost:11434
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model"`
	// Vision-capable model for multimodal requests (e.g. llava). Empty
	// disables multimodal on this backend.
	VisionModel string `yaml:"vision_model,omitempty"`
}

// GeminiConfig holds settings for the Gemini backend.
type GeminiConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`     // Consecutive failures before opening (default: 5)
	ResetTimeout time.Duration `yaml:"reset_timeout"` // Time before a half-open probe (default: 30s)
}

// AgentProfile configures one agent role.
type AgentProfile struct {
	Backend     string  `yaml:"backend,omitempty"` // Backend id override
	Model       string  `yaml:"model,omitempty"`   // Model override
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int32   `yaml:"max_tokens"`
}

// AgentsConfig holds per-role agent settings.
type AgentsConfig struct {
	Planner   AgentProfile `yaml:"planner"`
	Executor  AgentProfile `yaml:"executor"`
	Finalizer AgentProfile `yaml:"finalizer"`
	Extractor AgentProfile `yaml:"extractor"` // Graph extraction agent
	Vision    AgentProfile `yaml:"vision"`
}

// GraphConfig holds knowledge graph settings.
type GraphConfig struct {
	// Glob patterns (doublestar syntax) excluded from ingestion.
	Ignore []string `yaml:"ignore"`
	// Maximum file size sent to the extractor, in bytes (default: 64KiB).
	MaxFileBytes int64 `yaml:"max_file_bytes"`
	// Override for the on-disk graph location. Empty = config dir.
	StorePath string `yaml:"store_path,omitempty"`
}

// HealingConfig holds self-healing install settings.
type HealingConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`    // Default: 3
	CommandTimeout time.Duration `yaml:"command_timeout"` // Per install command (default: 5m)
	RetryDelay     time.Duration `yaml:"retry_delay"`     // Initial backoff delay (default: 1s)
	MaxDelay       time.Duration `yaml:"max_delay"`       // Backoff cap (default: 30s)
}

// SecurityConfig holds validator settings.
type SecurityConfig struct {
	BlockedCommands []string `yaml:"blocked_commands"` // Extra blocked command substrings
	DeniedPaths     []string `yaml:"denied_paths"`     // Extra denied path prefixes
}

// WatcherConfig holds file watcher settings for incremental graph updates.
type WatcherConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"` // Default: 500
	MaxWatches int  `yaml:"max_watches"` // Default: 1000
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  bool   `yaml:"file"`  // Log to a file in the config dir
}
