package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"codeloom/internal/agent"
	"codeloom/internal/client"
	"codeloom/internal/config"
	"codeloom/internal/executor"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, _ string, _ client.Options) (string, error) {
	return f.response, f.err
}

func newTestFinalizer(c Completer) *Finalizer {
	spawner := agent.NewSpawner(config.AgentsConfig{}, "test")
	return NewFinalizer(c, spawner)
}

func sampleResults() []executor.Result {
	return []executor.Result{
		{
			SubtaskID: "s1",
			Status:    executor.StatusCompleted,
			Files:     []executor.AppliedFile{{Path: "main.py", Bytes: 42}},
		},
		{
			SubtaskID: "s2",
			Status:    executor.StatusPartial,
			Files: []executor.AppliedFile{
				{Path: "util.py", Bytes: 10},
				{Path: "main.py", Bytes: 50},
			},
			SkippedOps: []executor.SkippedOp{
				{Kind: "path", Value: "/etc/passwd", Reason: "path escapes workspace"},
			},
		},
		{
			SubtaskID: "s3",
			Status:    executor.StatusFailed,
			Error:     "model call failed",
		},
	}
}

func TestBuildAggregatesFilesAndNotes(t *testing.T) {
	f := newTestFinalizer(&fakeCompleter{
		response: `{"summary":"built the tool","is_valid":true,"quality_score":0.8}`,
	})

	rep := f.Build(context.Background(), "build a tool", sampleResults(), map[string]string{
		"s1": "write main",
		"s2": "write util",
		"s3": "write tests",
	})

	if rep.Summary != "built the tool" {
		t.Errorf("Summary = %q", rep.Summary)
	}
	if rep.Validation.QualityScore != 0.8 || !rep.Validation.IsValid {
		t.Errorf("Validation = %+v", rep.Validation)
	}

	// Deduplicated and sorted.
	want := []string{"main.py", "util.py"}
	if len(rep.CreatedFiles) != len(want) {
		t.Fatalf("CreatedFiles = %v, want %v", rep.CreatedFiles, want)
	}
	for i, path := range want {
		if rep.CreatedFiles[i] != path {
			t.Errorf("CreatedFiles[%d] = %q, want %q", i, rep.CreatedFiles[i], path)
		}
	}

	if len(rep.Subtasks) != 3 {
		t.Fatalf("got %d subtask reports", len(rep.Subtasks))
	}
	if rep.Subtasks[1].Description != "write util" {
		t.Errorf("Description = %q", rep.Subtasks[1].Description)
	}
	if !strings.Contains(rep.Subtasks[1].Notes, "/etc/passwd") {
		t.Errorf("skip note missing from %q", rep.Subtasks[1].Notes)
	}
	if rep.Subtasks[2].Notes != "model call failed" {
		t.Errorf("error note = %q", rep.Subtasks[2].Notes)
	}
}

func TestBuildFallsBackWhenModelFails(t *testing.T) {
	f := newTestFinalizer(&fakeCompleter{err: errors.New("backend down")})

	rep := f.Build(context.Background(), "build a tool", sampleResults(), nil)

	if !strings.Contains(rep.Summary, "1 of 3 subtasks completed") {
		t.Errorf("Summary = %q, want mechanical fallback", rep.Summary)
	}
	// (completed + 0.5*partial) / total
	if got := rep.Validation.QualityScore; got != 0.5 {
		t.Errorf("QualityScore = %v, want 0.5", got)
	}
	if rep.Validation.IsValid {
		t.Error("IsValid = true with a failed subtask")
	}
}

func TestBuildFallsBackOnUnparseableResponse(t *testing.T) {
	f := newTestFinalizer(&fakeCompleter{response: "no json here"})

	rep := f.Build(context.Background(), "task", []executor.Result{
		{SubtaskID: "s1", Status: executor.StatusCompleted},
	}, nil)

	if !strings.Contains(rep.Summary, "1 of 1 subtasks completed") {
		t.Errorf("Summary = %q", rep.Summary)
	}
	if rep.Validation.QualityScore != 1.0 {
		t.Errorf("QualityScore = %v, want 1.0", rep.Validation.QualityScore)
	}
}

func TestBuildKeepsMechanicalScoreWhenModelOmitsIt(t *testing.T) {
	f := newTestFinalizer(&fakeCompleter{
		response: `{"summary":"all good","is_valid":true}`,
	})

	rep := f.Build(context.Background(), "task", []executor.Result{
		{SubtaskID: "s1", Status: executor.StatusCompleted},
	}, nil)

	if rep.Summary != "all good" {
		t.Errorf("Summary = %q", rep.Summary)
	}
	if rep.Validation.QualityScore != 1.0 {
		t.Errorf("QualityScore = %v, want mechanical 1.0", rep.Validation.QualityScore)
	}
}
