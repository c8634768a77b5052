package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backends: BackendsConfig{
			Default: "ollama",
			Ollama: OllamaConfig{
				Enabled:     true,
				BaseURL:     "http://localhost:11434",
				Model:       "qwen2.5-coder:7b",
				VisionModel: "llava",
			},
			Gemini: GeminiConfig{
				Enabled: false,
				Model:   "gemini-2.5-flash",
			},
			CallTimeout: 120 * time.Second,
			Breaker: BreakerConfig{
				Threshold:    5,
				ResetTimeout: 30 * time.Second,
			},
		},
		Agents: AgentsConfig{
			Planner:   AgentProfile{Temperature: 0.7, MaxTokens: 4096},
			Executor:  AgentProfile{Temperature: 0.7, MaxTokens: 8192},
			Finalizer: AgentProfile{Temperature: 0.5, MaxTokens: 4096},
			Extractor: AgentProfile{Temperature: 0.1, MaxTokens: 2048},
			Vision:    AgentProfile{Temperature: 0.2, MaxTokens: 4096},
		},
		Graph: GraphConfig{
			Ignore: []string{
				"**/.git/**",
				"**/node_modules/**",
				"**/vendor/**",
				"**/__pycache__/**",
				"**/dist/**",
				"**/build/**",
				"**/*.min.js",
			},
			MaxFileBytes: 64 * 1024,
		},
		Healing: HealingConfig{
			MaxAttempts:    3,
			CommandTimeout: 5 * time.Minute,
			RetryDelay:     1 * time.Second,
			MaxDelay:       30 * time.Second,
		},
		Watcher: WatcherConfig{
			Enabled:    false,
			DebounceMs: 500,
			MaxWatches: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  true,
		},
	}
}
