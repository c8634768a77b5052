package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeloom/internal/config"
	"codeloom/internal/logging"

	"github.com/ollama/ollama/api"
)

// OllamaClient serves completions from a local or remote Ollama server.
type OllamaClient struct {
	client      *api.Client
	model       string
	visionModel string
}

// authTransport adds an Authorization header to HTTP requests.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(reqClone)
}

// NewOllamaClient creates a client for the configured Ollama server.
func NewOllamaClient(cfg config.OllamaConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}

	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}

	if baseURL.Scheme == "http" {
		host := baseURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("ollama connection uses unencrypted HTTP to remote host", "host", host)
		}
	}

	httpClient := &http.Client{}
	if cfg.APIKey != "" {
		httpClient.Transport = &authTransport{
			base:   http.DefaultTransport,
			apiKey: cfg.APIKey,
		}
	}

	return &OllamaClient{
		client:      api.NewClient(baseURL, httpClient),
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
	}, nil
}

// Name returns the backend id.
func (c *OllamaClient) Name() string {
	return "ollama"
}

// Complete sends a prompt and returns the full response text.
func (c *OllamaClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	req := c.buildRequest(prompt, nil, opts)
	return c.chat(ctx, req)
}

// CompleteVision sends a prompt with image attachments. It uses the
// configured vision model; an empty vision model means no capability.
func (c *OllamaClient) CompleteVision(ctx context.Context, prompt string, images []Image, opts Options) (string, error) {
	if c.visionModel == "" {
		return "", fmt.Errorf("ollama: no vision model configured: %w", ErrUnsupportedModality)
	}

	req := c.buildRequest(prompt, images, opts)
	if opts.Model == "" {
		req.Model = c.visionModel
	}
	return c.chat(ctx, req)
}

func (c *OllamaClient) buildRequest(prompt string, images []Image, opts Options) *api.ChatRequest {
	var messages []api.Message

	if opts.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: opts.System})
	}

	userMsg := api.Message{Role: "user", Content: prompt}
	for _, img := range images {
		userMsg.Images = append(userMsg.Images, api.ImageData(img.Data))
	}
	messages = append(messages, userMsg)

	model := opts.Model
	if model == "" {
		model = c.model
	}

	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   apiPtr(false),
		Options:  map[string]interface{}{},
	}

	if opts.MaxTokens > 0 {
		req.Options["num_predict"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Options["temperature"] = opts.Temperature
	}
	if opts.JSONFormat {
		req.Format = json.RawMessage(`"json"`)
	}

	return req
}

func (c *OllamaClient) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	var builder strings.Builder

	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		builder.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", c.classifyError(err)
	}

	return builder.String(), nil
}

// classifyError maps ollama API errors onto the gateway taxonomy.
func (c *OllamaClient) classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &BackendError{
			Backend:    "ollama",
			StatusCode: statusErr.StatusCode,
			Message:    statusErr.ErrorMessage,
		}
	}

	if isUnreachable(err) {
		return fmt.Errorf("ollama: %v: %w", err, ErrBackendUnavailable)
	}

	return &BackendError{Backend: "ollama", Message: err.Error()}
}

func apiPtr[T any](v T) *T {
	return &v
}

// Ping verifies the server is reachable. Used at startup to surface
// misconfiguration early; failure is non-fatal for the run itself.
func (c *OllamaClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama: %v: %w", err, ErrBackendUnavailable)
	}
	return nil
}
