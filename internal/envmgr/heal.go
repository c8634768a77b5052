package envmgr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"codeloom/internal/agent"
	"codeloom/internal/client"
	"codeloom/internal/config"
	"codeloom/internal/logging"
	"codeloom/internal/workspace"
)

// Completer is the slice of the model gateway the healer needs.
type Completer interface {
	Complete(ctx context.Context, backendID, prompt string, opts client.Options) (string, error)
}

// Healer asks a model to repair a manifest that failed to install and
// writes the repaired version back into the workspace.
type Healer struct {
	completer Completer
	spawner   *agent.Spawner
	ws        *workspace.Workspace
}

// NewHealer creates a healer writing repairs into the given workspace.
func NewHealer(completer Completer, spawner *agent.Spawner, ws *workspace.Workspace) *Healer {
	return &Healer{completer: completer, spawner: spawner, ws: ws}
}

const healerSystem = `You repair broken dependency manifest files. Given a manifest and the error output from its install command, return the corrected manifest content. Common fixes: remove packages that do not exist, correct version constraints, fix syntax errors. Return ONLY the corrected file content, no explanation and no markdown fences.`

// Repair rewrites the manifest based on the install error. The returned
// note summarizes the change for the run report. A model failure returns
// an error so the caller can stop healing early.
func (h *Healer) Repair(ctx context.Context, manifest Manifest, errorOutput string) (string, error) {
	current, err := h.ws.Read(manifest.Path)
	if err != nil {
		return "", fmt.Errorf("reading manifest: %w", err)
	}

	handle := h.spawner.Spawn(agent.RoleAnalyzer, "fix dependency install failure")
	defer h.spawner.Terminate(handle.ID)

	prompt := fmt.Sprintf("Manifest file: %s\n\nCurrent content:\n%s\n\nInstall command failed with:\n%s\n\nReturn the corrected manifest content.",
		manifest.Path, string(current), errorOutput)

	opts := handle.Options()
	opts.System = healerSystem

	repaired, err := h.completer.Complete(ctx, handle.Backend, prompt, opts)
	if err != nil {
		return "", err
	}

	repaired = stripFences(repaired)
	if strings.TrimSpace(repaired) == "" {
		return "", fmt.Errorf("model returned empty manifest")
	}
	if repaired == string(current) {
		return "manifest unchanged by repair", nil
	}

	if err := h.ws.Write(manifest.Path, []byte(repaired), workspace.ModeOverwrite); err != nil {
		return "", fmt.Errorf("writing repaired manifest: %w", err)
	}

	note := fmt.Sprintf("repaired %s:\n%s", manifest.Path, diffSummary(string(current), repaired))
	logging.Info("manifest repaired", "manifest", manifest.Path)
	return note, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// diffSummary renders a compact patch of the repair for the run report.
func diffSummary(before, after string) string {
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(before, after)
	text := dmp.PatchToText(patches)

	const max = 2000
	if len(text) > max {
		text = text[:max] + "\n... (truncated)"
	}
	return text
}

func backoffDelay(cfg config.HealingConfig, attempt int) time.Duration {
	base := cfg.RetryDelay
	if base <= 0 {
		base = time.Second
	}
	max := cfg.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}
	return client.CalculateBackoff(base, attempt, max)
}
