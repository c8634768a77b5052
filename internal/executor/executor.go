// Package executor runs plan subtasks through executor agents and turns
// their raw output into files on disk via the result processor.
package executor

import (
	"context"
	"fmt"
	"strings"

	"codeloom/internal/agent"
	"codeloom/internal/client"
	"codeloom/internal/logging"
	"codeloom/internal/plan"
	"codeloom/internal/security"
)

// Status describes how a subtask ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusBlocked   Status = "blocked"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one subtask execution.
type Result struct {
	SubtaskID  string
	AgentID    string
	Status     Status
	RawOutput  string
	Files      []AppliedFile
	Commands   []string
	SkippedOps []SkippedOp
	Error      string
}

// AppliedFile is one file the processor wrote for this subtask.
type AppliedFile struct {
	Path  string
	Bytes int
}

// SkippedOp is an operation refused by the security validator.
type SkippedOp struct {
	Kind   string
	Value  string
	Reason string
}

// Completer is the slice of the model gateway the executor needs.
type Completer interface {
	Complete(ctx context.Context, backendID, prompt string, opts client.Options) (string, error)
}

// Executor runs subtasks one at a time.
type Executor struct {
	completer Completer
	spawner   *agent.Spawner
	validator *security.Validator
	processor *Processor
}

// New creates an executor.
func New(completer Completer, spawner *agent.Spawner, validator *security.Validator, processor *Processor) *Executor {
	return &Executor{
		completer: completer,
		spawner:   spawner,
		validator: validator,
		processor: processor,
	}
}

// Run executes one subtask. A subtask whose description is itself refused
// by the validator is blocked without spawning an agent; operations inside
// an otherwise fine response that get refused are skipped individually and
// downgrade the subtask to partial.
func (e *Executor) Run(ctx context.Context, st plan.Subtask, contextBlock string) Result {
	res := Result{SubtaskID: st.ID}

	if verdict := e.validator.Validate(security.Action{Kind: security.KindCommand, Value: st.Description}); !verdict.Allowed {
		res.Status = StatusBlocked
		res.Error = fmt.Sprintf("blocked by security: %s", verdict.Reason)
		logging.Warn("subtask blocked", "subtask", st.ID, "reason", verdict.Reason)
		return res
	}

	h := e.spawner.Spawn(agent.RoleExecutor, st.Description)
	defer e.spawner.Terminate(h.ID)
	res.AgentID = h.ID

	opts := h.Options()
	opts.System = agent.ExecutorSystemPrompt(h.Category)

	raw, err := e.completer.Complete(ctx, h.Backend, buildSubtaskPrompt(st, contextBlock), opts)
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		logging.Warn("subtask failed", "subtask", st.ID, "error", err)
		return res
	}
	res.RawOutput = raw

	applied, skipped, err := e.processor.Apply(raw)
	commands, cmdSkipped := e.processor.ExtractCommands(raw)
	res.Files = applied
	res.Commands = commands
	res.SkippedOps = append(skipped, cmdSkipped...)
	switch {
	case err != nil:
		res.Status = StatusPartial
		res.Error = err.Error()
	case len(res.SkippedOps) > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusCompleted
	}

	logging.Info("subtask executed",
		"subtask", st.ID,
		"status", string(res.Status),
		"files", len(applied),
		"skipped", len(res.SkippedOps))
	return res
}

// buildSubtaskPrompt wraps the subtask description with output instructions
// so the processor can reliably find files in the response.
func buildSubtaskPrompt(st plan.Subtask, contextBlock string) string {
	var builder strings.Builder
	builder.WriteString(st.Description)
	builder.WriteString("\n\n")
	if st.RequiredOutput != "" {
		builder.WriteString("Required output: ")
		builder.WriteString(st.RequiredOutput)
		builder.WriteString("\n\n")
	}
	if contextBlock != "" {
		builder.WriteString(contextBlock)
		builder.WriteString("\n\n")
	}
	builder.WriteString("IMPORTANT: Provide complete, working code.\n")
	builder.WriteString("Label every file explicitly as '### FILE: path/to/file.ext' ")
	builder.WriteString("followed by a fenced code block with the file content.\n")
	builder.WriteString("Format code in markdown code blocks with language specification (```python).")
	return builder.String()
}
