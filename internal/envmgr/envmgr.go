// Package envmgr detects dependency manifests in the workspace and runs
// their install commands, repairing broken manifests with a model and
// retrying with backoff when installs fail.
package envmgr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"codeloom/internal/config"
	"codeloom/internal/logging"
	"codeloom/internal/security"
	"codeloom/internal/workspace"
)

// ManifestKind identifies the package ecosystem of a manifest.
type ManifestKind string

const (
	KindNode   ManifestKind = "node"
	KindPython ManifestKind = "python"
	KindGo     ManifestKind = "go"
)

// Manifest is one dependency file found in the workspace.
type Manifest struct {
	Path string // workspace-relative path to the manifest file
	Dir  string // workspace-relative directory to run the install in
	Kind ManifestKind
	Cmd  []string
}

// InstallAttempt records one install command invocation.
type InstallAttempt struct {
	Attempt  int
	Command  string
	ExitCode int
	Output   string
}

// Runner executes install commands. The production runner shells out;
// tests inject fakes.
type Runner interface {
	Run(ctx context.Context, dir string, cmd []string) (exitCode int, output string, err error)
}

type execRunner struct {
	root    string
	timeout time.Duration
}

// NewExecRunner returns a Runner that executes commands under the given
// workspace root with a per-command timeout.
func NewExecRunner(root string, timeout time.Duration) Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &execRunner{root: root, timeout: timeout}
}

func (r *execRunner) Run(ctx context.Context, dir string, cmd []string) (int, string, error) {
	if len(cmd) == 0 {
		return -1, "", fmt.Errorf("empty command")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd[0], cmd[1:]...)
	c.Dir = filepath.Join(r.root, filepath.FromSlash(dir))

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	err := c.Run()
	output := buf.String()

	if runCtx.Err() == context.DeadlineExceeded {
		return -1, output, fmt.Errorf("command timed out after %s", r.timeout)
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), output, nil
	}
	if err != nil {
		return -1, output, err
	}
	return 0, output, nil
}

// DetectManifests finds dependency manifests in the workspace, skipping
// vendored trees.
func DetectManifests(ws *workspace.Workspace) ([]Manifest, error) {
	files, err := ws.List("")
	if err != nil {
		return nil, err
	}

	var manifests []Manifest
	for _, rel := range files {
		if strings.Contains(rel, "node_modules/") ||
			strings.Contains(rel, "venv/") ||
			strings.Contains(rel, ".env/") ||
			strings.Contains(rel, "vendor/") {
			continue
		}

		dir := filepath.ToSlash(filepath.Dir(rel))
		switch filepath.Base(rel) {
		case "package.json":
			manifests = append(manifests, Manifest{
				Path: rel, Dir: dir, Kind: KindNode,
				Cmd: []string{"npm", "install"},
			})
		case "requirements.txt":
			manifests = append(manifests, Manifest{
				Path: rel, Dir: dir, Kind: KindPython,
				Cmd: []string{"pip", "install", "-r", "requirements.txt"},
			})
		case "go.mod":
			manifests = append(manifests, Manifest{
				Path: rel, Dir: dir, Kind: KindGo,
				Cmd: []string{"go", "mod", "tidy"},
			})
		}
	}
	return manifests, nil
}

// commandLine renders a command for validation and reporting.
func commandLine(cmd []string) string {
	return strings.Join(cmd, " ")
}

// screen refuses install commands the validator rejects. Manifest commands
// are generated internally, so a denial here means a misconfigured override
// rather than a hostile model.
func screen(v *security.Validator, cmd []string) error {
	verdict := v.Validate(security.Action{Kind: security.KindCommand, Value: commandLine(cmd)})
	if !verdict.Allowed {
		return fmt.Errorf("install command refused: %s", verdict.Reason)
	}
	return nil
}

// Options bundles the manager's collaborators.
type Options struct {
	Workspace *workspace.Workspace
	Validator *security.Validator
	Runner    Runner
	Healer    *Healer // nil disables model-assisted repair
	Config    config.HealingConfig
}

// Manager runs installs for every detected manifest.
type Manager struct {
	ws        *workspace.Workspace
	validator *security.Validator
	runner    Runner
	healer    *Healer
	cfg       config.HealingConfig
}

// NewManager creates a manager. A nil runner gets the default exec runner.
func NewManager(opts Options) *Manager {
	if opts.Runner == nil {
		opts.Runner = NewExecRunner(opts.Workspace.Root(), opts.Config.CommandTimeout)
	}
	if opts.Config.MaxAttempts <= 0 {
		opts.Config.MaxAttempts = 3
	}
	return &Manager{
		ws:        opts.Workspace,
		validator: opts.Validator,
		runner:    opts.Runner,
		healer:    opts.Healer,
		cfg:       opts.Config,
	}
}

// InstallAll detects manifests and installs each, healing failures. The
// returned reports cover every manifest; install failure is never fatal.
func (m *Manager) InstallAll(ctx context.Context) ([]Report, error) {
	manifests, err := DetectManifests(m.ws)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, manifest := range manifests {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		reports = append(reports, m.install(ctx, manifest))
	}
	return reports, nil
}

func (m *Manager) install(ctx context.Context, manifest Manifest) Report {
	report := Report{Manifest: manifest.Path, Kind: manifest.Kind}

	if err := screen(m.validator, manifest.Cmd); err != nil {
		report.FinalStatus = StatusSkipped
		report.Notes = append(report.Notes, err.Error())
		return report
	}

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		exitCode, output, err := m.runner.Run(ctx, manifest.Dir, manifest.Cmd)
		rec := InstallAttempt{
			Attempt:  attempt,
			Command:  commandLine(manifest.Cmd),
			ExitCode: exitCode,
			Output:   truncateOutput(output),
		}
		if err != nil {
			rec.Output = truncateOutput(output + "\n" + err.Error())
		}
		report.Attempts = append(report.Attempts, rec)

		if err == nil && exitCode == 0 {
			report.FinalStatus = StatusHealthy
			logging.Info("install succeeded",
				"manifest", manifest.Path,
				"attempt", attempt)
			return report
		}

		logging.Warn("install failed",
			"manifest", manifest.Path,
			"attempt", attempt,
			"exit", exitCode)

		if attempt == m.cfg.MaxAttempts {
			break
		}

		if m.healer != nil {
			note, healErr := m.healer.Repair(ctx, manifest, rec.Output)
			if healErr != nil {
				// No model means no way to make the next attempt differ.
				report.Notes = append(report.Notes, "healing unavailable: "+healErr.Error())
				break
			}
			if note != "" {
				report.Notes = append(report.Notes, note)
			}
		}

		select {
		case <-ctx.Done():
			report.FinalStatus = StatusFailed
			return report
		case <-time.After(backoffDelay(m.cfg, attempt)):
		}
	}

	report.FinalStatus = StatusFailed
	return report
}

func truncateOutput(s string) string {
	const max = 4000
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

// Status is the final state of one manifest's install.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Report is the install outcome for one manifest.
type Report struct {
	Manifest    string
	Kind        ManifestKind
	Attempts    []InstallAttempt
	Notes       []string
	FinalStatus Status
}
