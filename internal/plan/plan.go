// Package plan turns a task description into an ordered list of subtasks by
// asking a planner agent, with a plain-text fallback parser for models that
// ignore the JSON instructions.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"codeloom/internal/agent"
	"codeloom/internal/client"
	"codeloom/internal/logging"
)

// ErrPlanning means no usable plan could be produced. It is fatal to a run:
// without subtasks there is nothing to execute.
var ErrPlanning = errors.New("planning failed")

// Subtask is one unit of work inside a plan.
type Subtask struct {
	ID             string `json:"id"`
	ParentTaskID   string `json:"parent_task_id"`
	Ordinal        int    `json:"ordinal"`
	Description    string `json:"description"`
	TaskType       string `json:"task_type"`
	RequiredOutput string `json:"required_output"`
}

// Plan is an ordered decomposition of one task.
type Plan struct {
	ID       string    `json:"id"`
	Task     string    `json:"task"`
	Subtasks []Subtask `json:"subtasks"`
}

// Completer is the slice of the model gateway the planner needs.
type Completer interface {
	Complete(ctx context.Context, backendID, prompt string, opts client.Options) (string, error)
}

// Planner asks a planner agent to decompose tasks.
type Planner struct {
	completer Completer
	spawner   *agent.Spawner
}

// NewPlanner creates a planner over the given gateway and spawner.
func NewPlanner(completer Completer, spawner *agent.Spawner) *Planner {
	return &Planner{completer: completer, spawner: spawner}
}

// Create produces a plan for the task. contextBlock carries code-structure
// and image context and may be empty. Fails with ErrPlanning when the model
// is unreachable or the response yields no subtasks.
func (p *Planner) Create(ctx context.Context, taskID, task, contextBlock string) (Plan, error) {
	h := p.spawner.Spawn(agent.RolePlanner, task)
	defer p.spawner.Terminate(h.ID)

	prompt := buildPlanningPrompt(task, contextBlock)
	opts := h.Options()
	opts.System = agent.PlannerSystemPrompt
	opts.JSONFormat = true

	raw, err := p.completer.Complete(ctx, h.Backend, prompt, opts)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrPlanning, err)
	}

	subtasks := parseSubtasks(raw, taskID)
	if len(subtasks) == 0 {
		return Plan{}, fmt.Errorf("%w: response contained no subtasks", ErrPlanning)
	}

	plan := Plan{ID: uuid.NewString(), Task: task, Subtasks: subtasks}
	logging.Info("plan created", "plan", plan.ID, "subtasks", len(subtasks))
	return plan, nil
}

func buildPlanningPrompt(task, contextBlock string) string {
	var builder strings.Builder
	builder.WriteString("Create a detailed execution plan for this task:\n\n")
	builder.WriteString(task)
	if contextBlock != "" {
		builder.WriteString("\n\nAdditional Context:\n")
		builder.WriteString(contextBlock)
	}
	builder.WriteString("\n\nProvide a comprehensive plan with clear subtasks.")
	return builder.String()
}

type planResponse struct {
	Subtasks []struct {
		ID             string `json:"id"`
		Description    string `json:"description"`
		TaskType       string `json:"task_type"`
		RequiredOutput string `json:"required_output"`
	} `json:"subtasks"`
	ExecutionOrder []string `json:"execution_order"`
}

// parseSubtasks extracts subtasks from a model response: JSON first, then a
// numbered or bulleted list. Subtask order follows execution_order when the
// model provides one.
func parseSubtasks(raw, parentTaskID string) []Subtask {
	if payload := client.ExtractJSON(raw); payload != "" {
		var resp planResponse
		if err := json.Unmarshal([]byte(payload), &resp); err == nil && len(resp.Subtasks) > 0 {
			return orderSubtasks(resp, parentTaskID)
		}
	}
	return parseTextPlan(raw, parentTaskID)
}

func orderSubtasks(resp planResponse, parentTaskID string) []Subtask {
	byID := make(map[string]int, len(resp.Subtasks))
	for i, st := range resp.Subtasks {
		byID[st.ID] = i
	}

	indexes := make([]int, 0, len(resp.Subtasks))
	seen := make(map[int]bool)
	for _, id := range resp.ExecutionOrder {
		if i, ok := byID[id]; ok && !seen[i] {
			indexes = append(indexes, i)
			seen[i] = true
		}
	}
	for i := range resp.Subtasks {
		if !seen[i] {
			indexes = append(indexes, i)
		}
	}

	var out []Subtask
	for ordinal, i := range indexes {
		st := resp.Subtasks[i]
		desc := strings.TrimSpace(st.Description)
		if desc == "" {
			continue
		}
		taskType := st.TaskType
		if taskType == "" {
			taskType = string(agent.CategoryGeneral)
		}
		out = append(out, Subtask{
			ID:             uuid.NewString(),
			ParentTaskID:   parentTaskID,
			Ordinal:        ordinal,
			Description:    desc,
			TaskType:       taskType,
			RequiredOutput: strings.TrimSpace(st.RequiredOutput),
		})
	}
	return out
}

// parseTextPlan salvages a plan from a plain-text response by treating
// numbered or bulleted lines as subtasks.
func parseTextPlan(text, parentTaskID string) []Subtask {
	var out []Subtask
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := line[0]
		if !(first >= '0' && first <= '9') && first != '-' && first != '*' {
			continue
		}
		desc := strings.TrimLeft(line, "0123456789.-*) ")
		if desc == "" {
			continue
		}
		out = append(out, Subtask{
			ID:           uuid.NewString(),
			ParentTaskID: parentTaskID,
			Ordinal:      len(out),
			Description:  desc,
			TaskType:     string(agent.CategoryGeneral),
		})
	}
	return out
}
