package plan

import (
	"context"
	"errors"
	"testing"

	"codeloom/internal/agent"
	"codeloom/internal/client"
	"codeloom/internal/config"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, _ string, _ client.Options) (string, error) {
	return f.response, f.err
}

func newTestSpawner() *agent.Spawner {
	return agent.NewSpawner(config.DefaultConfig().Agents, "ollama")
}

func TestCreateParsesJSONPlan(t *testing.T) {
	fc := &fakeCompleter{response: `{
		"subtasks": [
			{"id": "subtask_1", "description": "Build the HTML layout", "task_type": "coding"},
			{"id": "subtask_2", "description": "Style the page", "task_type": "coding"},
			{"id": "subtask_3", "description": "Wire up interactions", "task_type": "coding"}
		],
		"execution_order": ["subtask_2", "subtask_1", "subtask_3"]
	}`}

	p := NewPlanner(fc, newTestSpawner())
	plan, err := p.Create(context.Background(), "task-1", "build a landing page", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(plan.Subtasks) != 3 {
		t.Fatalf("subtask count = %d, want 3", len(plan.Subtasks))
	}
	if plan.Subtasks[0].Description != "Style the page" {
		t.Errorf("execution_order not honored: first subtask = %q", plan.Subtasks[0].Description)
	}
	for i, st := range plan.Subtasks {
		if st.Ordinal != i {
			t.Errorf("subtask %d ordinal = %d", i, st.Ordinal)
		}
		if st.ParentTaskID != "task-1" {
			t.Errorf("subtask %d parent = %q, want task-1", i, st.ParentTaskID)
		}
		if st.ID == "" {
			t.Errorf("subtask %d has empty id", i)
		}
	}
}

func TestCreateFallsBackToTextPlan(t *testing.T) {
	fc := &fakeCompleter{response: `Here is my plan:
1. Create the data model
2. Implement the API endpoints
- Write tests

That should cover it.`}

	p := NewPlanner(fc, newTestSpawner())
	plan, err := p.Create(context.Background(), "task-1", "build an api", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(plan.Subtasks) != 3 {
		t.Fatalf("subtask count = %d, want 3", len(plan.Subtasks))
	}
	if plan.Subtasks[0].Description != "Create the data model" {
		t.Errorf("first subtask = %q", plan.Subtasks[0].Description)
	}
}

func TestCreateFailsOnBackendError(t *testing.T) {
	fc := &fakeCompleter{err: client.ErrBackendUnavailable}

	p := NewPlanner(fc, newTestSpawner())
	_, err := p.Create(context.Background(), "task-1", "anything", "")
	if !errors.Is(err, ErrPlanning) {
		t.Errorf("error = %v, want ErrPlanning", err)
	}
	if !errors.Is(err, client.ErrBackendUnavailable) {
		t.Errorf("error should wrap the backend failure, got %v", err)
	}
}

func TestCreateFailsOnEmptyPlan(t *testing.T) {
	fc := &fakeCompleter{response: "I cannot help with that."}

	p := NewPlanner(fc, newTestSpawner())
	_, err := p.Create(context.Background(), "task-1", "anything", "")
	if !errors.Is(err, ErrPlanning) {
		t.Errorf("error = %v, want ErrPlanning", err)
	}
}
