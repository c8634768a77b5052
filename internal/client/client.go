package client

import "context"

// Options control a single completion request.
type Options struct {
	// Model overrides the backend's default model when non-empty.
	Model string

	// System is an optional system-level instruction.
	System string

	Temperature float32
	MaxTokens   int32

	// JSONFormat asks the backend for a JSON-only response where supported.
	JSONFormat bool
}

// Image is one image attachment for a multimodal completion.
type Image struct {
	MIMEType string // e.g. "image/png"
	Data     []byte
}

// Client is the capability every model backend provides.
type Client interface {
	// Complete sends a prompt and returns the full response text.
	Complete(ctx context.Context, prompt string, opts Options) (string, error)

	// Name returns the backend id this client serves.
	Name() string
}

// VisionClient is the optional multimodal capability. Backends that cannot
// accept image input simply do not implement it.
type VisionClient interface {
	Client

	// CompleteVision sends a prompt with image attachments.
	CompleteVision(ctx context.Context, prompt string, images []Image, opts Options) (string, error)
}
