// Package report consolidates a run's results into a final report using a
// finalizer agent for the quality summary.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeloom/internal/agent"
	"codeloom/internal/client"
	"codeloom/internal/envmgr"
	"codeloom/internal/executor"
	"codeloom/internal/logging"
	"codeloom/internal/security"
)

// SubtaskReport is the per-subtask slice of the final report.
type SubtaskReport struct {
	SubtaskID   string
	Description string
	Status      executor.Status
	Files       []string
	Notes       string
}

// Validation is the finalizer's quality verdict.
type Validation struct {
	IsValid      bool     `json:"is_valid"`
	Issues       []string `json:"issues"`
	Suggestions  []string `json:"suggestions"`
	QualityScore float64  `json:"quality_score"`
}

// Report is the final artifact of one engine run.
type Report struct {
	ID             string
	Task           string
	Summary        string
	CreatedFiles   []string
	Subtasks       []SubtaskReport
	Healing        []envmgr.Report
	SecurityEvents []security.Event
	Validation     Validation
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Completer is the slice of the model gateway the finalizer needs.
type Completer interface {
	Complete(ctx context.Context, backendID, prompt string, opts client.Options) (string, error)
}

// Finalizer builds reports.
type Finalizer struct {
	completer Completer
	spawner   *agent.Spawner
}

// NewFinalizer creates a finalizer.
func NewFinalizer(completer Completer, spawner *agent.Spawner) *Finalizer {
	return &Finalizer{completer: completer, spawner: spawner}
}

// Build consolidates results into a report. Model failures degrade to a
// mechanical summary; finalization never fails a run.
func (f *Finalizer) Build(ctx context.Context, task string, results []executor.Result, subtaskDescs map[string]string) Report {
	rep := Report{
		ID:   uuid.NewString(),
		Task: task,
	}

	fileSet := make(map[string]bool)
	for _, res := range results {
		sr := SubtaskReport{
			SubtaskID:   res.SubtaskID,
			Description: subtaskDescs[res.SubtaskID],
			Status:      res.Status,
			Notes:       res.Error,
		}
		for _, file := range res.Files {
			sr.Files = append(sr.Files, file.Path)
			fileSet[file.Path] = true
		}
		if len(res.Commands) > 0 {
			if sr.Notes != "" {
				sr.Notes += "; "
			}
			sr.Notes += "suggested commands: " + strings.Join(res.Commands, ", ")
		}
		if len(res.SkippedOps) > 0 {
			var parts []string
			for _, op := range res.SkippedOps {
				parts = append(parts, fmt.Sprintf("%s %s (%s)", op.Kind, op.Value, op.Reason))
			}
			if sr.Notes != "" {
				sr.Notes += "; "
			}
			sr.Notes += "skipped: " + strings.Join(parts, ", ")
		}
		rep.Subtasks = append(rep.Subtasks, sr)
	}
	for path := range fileSet {
		rep.CreatedFiles = append(rep.CreatedFiles, path)
	}
	sort.Strings(rep.CreatedFiles)

	rep.Summary, rep.Validation = f.summarize(ctx, task, results)
	return rep
}

const validationCriteria = `- Completeness - All required components implemented
- Quality - Code follows best practices
- Correctness - Logic is sound and accurate
- Clarity - Code is well-documented and readable
- Functionality - Solution works as intended`

func (f *Finalizer) summarize(ctx context.Context, task string, results []executor.Result) (string, Validation) {
	fallback := mechanicalSummary(results)
	fallbackValidation := Validation{IsValid: fallback.failed == 0, QualityScore: fallback.score}

	h := f.spawner.Spawn(agent.RoleFinalizer, "result validation and consolidation")
	defer f.spawner.Terminate(h.ID)

	prompt := fmt.Sprintf(`Validate these task results against the criteria and summarize them.

Original Task: %s

Results:
%s

Validation Criteria:
%s

Respond as JSON:
{"summary": "2-4 sentence summary of what was accomplished",
 "is_valid": true,
 "issues": [],
 "suggestions": [],
 "quality_score": 0.0}`, task, formatResults(results), validationCriteria)

	opts := h.Options()
	opts.System = agent.FinalizerSystemPrompt
	opts.JSONFormat = true

	raw, err := f.completer.Complete(ctx, h.Backend, prompt, opts)
	if err != nil {
		logging.Warn("finalizer model call failed, using mechanical summary", "error", err)
		return fallback.text, fallbackValidation
	}

	payload := client.ExtractJSON(raw)
	if payload == "" {
		return fallback.text, fallbackValidation
	}

	var parsed struct {
		Summary string `json:"summary"`
		Validation
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return fallback.text, fallbackValidation
	}
	if parsed.Summary == "" {
		parsed.Summary = fallback.text
	}
	if parsed.QualityScore <= 0 {
		parsed.QualityScore = fallback.score
	}
	return parsed.Summary, parsed.Validation
}

type summaryStats struct {
	text   string
	score  float64
	failed int
}

func mechanicalSummary(results []executor.Result) summaryStats {
	completed, partial, failed := 0, 0, 0
	files := 0
	for _, res := range results {
		switch res.Status {
		case executor.StatusCompleted:
			completed++
		case executor.StatusPartial:
			partial++
		default:
			failed++
		}
		files += len(res.Files)
	}

	total := len(results)
	score := 0.0
	if total > 0 {
		score = (float64(completed) + 0.5*float64(partial)) / float64(total)
	}

	return summaryStats{
		text: fmt.Sprintf("%d of %d subtasks completed (%d partial, %d failed or blocked), %d files created.",
			completed, total, partial, failed, files),
		score:  score,
		failed: failed,
	}
}

func formatResults(results []executor.Result) string {
	var builder strings.Builder
	for _, res := range results {
		builder.WriteString(fmt.Sprintf("- %s [%s]", res.SubtaskID, res.Status))
		if len(res.Files) > 0 {
			var paths []string
			for _, f := range res.Files {
				paths = append(paths, f.Path)
			}
			builder.WriteString(" files: " + strings.Join(paths, ", "))
		}
		if res.Error != "" {
			builder.WriteString(" error: " + res.Error)
		}
		builder.WriteString("\n")

		output := res.RawOutput
		const max = 800
		if len(output) > max {
			output = output[:max] + "... (truncated)"
		}
		if output != "" {
			builder.WriteString("  " + strings.ReplaceAll(output, "\n", "\n  ") + "\n")
		}
	}
	return builder.String()
}
