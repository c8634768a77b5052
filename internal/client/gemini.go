package client

import (
	"context"
	"fmt"
	"strings"

	"codeloom/internal/config"

	"google.golang.org/genai"
)

// GeminiClient serves completions from the Gemini API. Gemini models are
// natively multimodal, so this client always implements VisionClient.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required (set GEMINI_API_KEY)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Name returns the backend id.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Complete sends a prompt and returns the full response text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	return c.generate(ctx, contents, opts)
}

// CompleteVision sends a prompt with image attachments.
func (c *GeminiClient) CompleteVision(ctx context.Context, prompt string, images []Image, opts Options) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, mime))
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	return c.generate(ctx, contents, opts)
}

func (c *GeminiClient) generate(ctx context.Context, contents []*genai.Content, opts Options) (string, error) {
	genCfg := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = opts.MaxTokens
	}
	if opts.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	if opts.JSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return "", c.classifyError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", &BackendError{Backend: "gemini", Message: "empty response"}
	}
	return text, nil
}

// classifyError maps Gemini API errors onto the gateway taxonomy. The genai
// SDK surfaces HTTP status codes inside error strings, so classification
// falls back to string matching for untyped errors.
func (c *GeminiClient) classifyError(err error) error {
	if isUnreachable(err) {
		return fmt.Errorf("gemini: %v: %w", err, ErrBackendUnavailable)
	}

	msg := err.Error()
	for _, probe := range []struct {
		token  string
		status int
	}{
		{"429", 429},
		{"500", 500},
		{"502", 502},
		{"503", 503},
		{"504", 504},
		{"400", 400},
		{"403", 403},
		{"404", 404},
	} {
		if strings.Contains(msg, probe.token) {
			return &BackendError{Backend: "gemini", StatusCode: probe.status, Message: msg}
		}
	}

	return &BackendError{Backend: "gemini", Message: msg}
}
