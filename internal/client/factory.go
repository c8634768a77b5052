package client

import (
	"context"
	"fmt"

	"codeloom/internal/config"
	"codeloom/internal/logging"
)

// BuildGateway creates a gateway with every enabled backend registered.
// At least one backend must register successfully.
func BuildGateway(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	gw := NewGateway(
		cfg.Backends.CallTimeout,
		cfg.Backends.Breaker.Threshold,
		cfg.Backends.Breaker.ResetTimeout,
	)

	if cfg.Backends.Ollama.Enabled {
		c, err := NewOllamaClient(cfg.Backends.Ollama)
		if err != nil {
			return nil, fmt.Errorf("ollama backend: %w", err)
		}
		gw.Register("ollama", c)
		logging.Debug("registered backend", "id", "ollama", "model", cfg.Backends.Ollama.Model)
	}

	if cfg.Backends.Gemini.Enabled {
		c, err := NewGeminiClient(ctx, cfg.Backends.Gemini)
		if err != nil {
			return nil, fmt.Errorf("gemini backend: %w", err)
		}
		gw.Register("gemini", c)
		logging.Debug("registered backend", "id", "gemini", "model", cfg.Backends.Gemini.Model)
	}

	if len(gw.Backends()) == 0 {
		return nil, config.ErrNoBackend
	}

	if !gw.Has(cfg.Backends.Default) {
		return nil, fmt.Errorf("default backend %q is not enabled", cfg.Backends.Default)
	}

	return gw, nil
}
