package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"codeloom/internal/breaker"
	"codeloom/internal/logging"
)

// Gateway routes completion requests to registered backends. It enforces a
// per-call timeout and a per-backend circuit breaker, but never retries:
// retry policy belongs to callers.
type Gateway struct {
	mu       sync.RWMutex
	backends map[string]Client
	breakers map[string]*breaker.Breaker

	callTimeout      time.Duration
	breakerThreshold int
	breakerReset     time.Duration
}

// NewGateway creates an empty gateway.
func NewGateway(callTimeout time.Duration, breakerThreshold int, breakerReset time.Duration) *Gateway {
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	if breakerThreshold <= 0 {
		breakerThreshold = 5
	}
	if breakerReset <= 0 {
		breakerReset = 30 * time.Second
	}
	return &Gateway{
		backends:         make(map[string]Client),
		breakers:         make(map[string]*breaker.Breaker),
		callTimeout:      callTimeout,
		breakerThreshold: breakerThreshold,
		breakerReset:     breakerReset,
	}
}

// Register adds a backend under the given id. Registering an id twice
// replaces the previous client; calling code never changes.
func (g *Gateway) Register(id string, c Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.backends[id] = c
	g.breakers[id] = breaker.New(g.breakerThreshold, g.breakerReset)
}

// Backends returns the sorted ids of registered backends.
func (g *Gateway) Backends() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.backends))
	for id := range g.backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether a backend id is registered.
func (g *Gateway) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.backends[id]
	return ok
}

// SupportsVision reports whether the backend can accept image input.
func (g *Gateway) SupportsVision(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.backends[id]
	if !ok {
		return false
	}
	_, ok = c.(VisionClient)
	return ok
}

// Complete routes a text completion to the backend with the given id.
func (g *Gateway) Complete(ctx context.Context, backendID, prompt string, opts Options) (string, error) {
	c, br, err := g.lookup(backendID)
	if err != nil {
		return "", err
	}

	return g.call(ctx, backendID, br, func(ctx context.Context) (string, error) {
		return c.Complete(ctx, prompt, opts)
	})
}

// CompleteVision routes a multimodal completion to the backend with the
// given id. Backends without the capability fail with ErrUnsupportedModality.
func (g *Gateway) CompleteVision(ctx context.Context, backendID, prompt string, images []Image, opts Options) (string, error) {
	c, br, err := g.lookup(backendID)
	if err != nil {
		return "", err
	}

	vc, ok := c.(VisionClient)
	if !ok {
		return "", fmt.Errorf("%s: %w", backendID, ErrUnsupportedModality)
	}

	return g.call(ctx, backendID, br, func(ctx context.Context) (string, error) {
		return vc.CompleteVision(ctx, prompt, images, opts)
	})
}

func (g *Gateway) lookup(backendID string) (Client, *breaker.Breaker, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.backends[backendID]
	if !ok {
		return nil, nil, fmt.Errorf("backend %q not registered: %w", backendID, ErrBackendUnavailable)
	}
	return c, g.breakers[backendID], nil
}

func (g *Gateway) call(ctx context.Context, backendID string, br *breaker.Breaker, fn func(context.Context) (string, error)) (string, error) {
	if !br.Allow() {
		return "", fmt.Errorf("backend %q: %w: %w", backendID, breaker.ErrOpen, ErrBackendUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	start := time.Now()
	text, err := fn(callCtx)
	if err != nil {
		br.RecordFailure()
		logging.Warn("backend call failed",
			"backend", backendID,
			"elapsed", time.Since(start),
			"error", err)
		if isUnreachable(err) {
			return "", fmt.Errorf("backend %q: %v: %w", backendID, err, ErrBackendUnavailable)
		}
		return "", err
	}

	br.RecordSuccess()
	logging.Debug("backend call completed",
		"backend", backendID,
		"elapsed", time.Since(start),
		"chars", len(text))
	return text, nil
}
