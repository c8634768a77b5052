// Package vision turns UI screenshots into textual context for planning,
// using a vision-capable backend through the model gateway.
package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeloom/internal/agent"
	"codeloom/internal/client"
	"codeloom/internal/logging"
)

// VisionCompleter is the slice of the model gateway the analyzer needs.
type VisionCompleter interface {
	CompleteVision(ctx context.Context, backendID, prompt string, images []client.Image, opts client.Options) (string, error)
	SupportsVision(backendID string) bool
}

// Analyzer describes UI images for the planner.
type Analyzer struct {
	completer VisionCompleter
	spawner   *agent.Spawner
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(completer VisionCompleter, spawner *agent.Spawner) *Analyzer {
	return &Analyzer{completer: completer, spawner: spawner}
}

// Describe analyzes the images and returns a structural description of the
// UI they show. Backends without vision support fail with
// ErrUnsupportedModality; callers treat any failure here as non-fatal.
func (a *Analyzer) Describe(ctx context.Context, images []client.Image) (string, error) {
	if len(images) == 0 {
		return "", nil
	}

	h := a.spawner.Spawn(agent.RoleVision, "analyze UI screenshots")
	defer a.spawner.Terminate(h.ID)

	if !a.completer.SupportsVision(h.Backend) {
		return "", fmt.Errorf("backend %q: %w", h.Backend, client.ErrUnsupportedModality)
	}

	opts := h.Options()
	opts.System = agent.VisionAnalyzeSystemPrompt

	desc, err := a.completer.CompleteVision(ctx, h.Backend, "Analyze this UI design.", images, opts)
	if err != nil {
		return "", err
	}

	logging.Debug("image analysis complete", "images", len(images), "chars", len(desc))
	return strings.TrimSpace(desc), nil
}

// LoadImages reads image files from disk into gateway payloads.
func LoadImages(paths []string) ([]client.Image, error) {
	var images []client.Image
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading image %s: %w", path, err)
		}
		images = append(images, client.Image{
			MIMEType: mimeTypeFor(path),
			Data:     data,
		})
	}
	return images, nil
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
