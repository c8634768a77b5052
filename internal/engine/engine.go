// Package engine drives a task through its lifecycle: gather context, plan,
// execute subtasks, heal the environment, and finalize a report.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"codeloom/internal/client"
	"codeloom/internal/envmgr"
	"codeloom/internal/executor"
	"codeloom/internal/graph"
	"codeloom/internal/logging"
	"codeloom/internal/plan"
	"codeloom/internal/report"
	"codeloom/internal/security"
	"codeloom/internal/vision"
	"codeloom/internal/workspace"
)

// Task is one unit of work submitted to the engine.
type Task struct {
	ID          string
	Description string
	Images      []client.Image
	// ContextOverrides is extra context supplied by the caller, injected
	// into the planning prompt verbatim.
	ContextOverrides string
}

// RunState is the observable state of an in-flight or finished run.
type RunState struct {
	TaskID    string
	Phase     Phase
	Subtask   int // index of the executing subtask, meaningful in PhaseExecuting
	Subtasks  int
	StartedAt time.Time
	UpdatedAt time.Time
	Err       string
}

// Engine orchestrates one task at a time through its collaborators.
type Engine struct {
	planner   *plan.Planner
	executor  *executor.Executor
	finalizer *report.Finalizer
	envmgr    *envmgr.Manager
	graph     *graph.Store
	ingester  *graph.Ingester  // nil disables incremental graph updates
	vision    *vision.Analyzer // nil disables image context
	ws        *workspace.Workspace
	validator *security.Validator

	mu    sync.RWMutex
	state RunState
}

// Options bundles the engine's collaborators.
type Options struct {
	Planner   *plan.Planner
	Executor  *executor.Executor
	Finalizer *report.Finalizer
	EnvMgr    *envmgr.Manager
	Graph     *graph.Store
	Ingester  *graph.Ingester
	Vision    *vision.Analyzer
	Workspace *workspace.Workspace
	Validator *security.Validator
}

// New creates an engine.
func New(opts Options) *Engine {
	return &Engine{
		planner:   opts.Planner,
		executor:  opts.Executor,
		finalizer: opts.Finalizer,
		envmgr:    opts.EnvMgr,
		graph:     opts.Graph,
		ingester:  opts.Ingester,
		vision:    opts.Vision,
		ws:        opts.Workspace,
		validator: opts.Validator,
	}
}

// State returns a copy of the current run state.
func (e *Engine) State() RunState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) transition(phase Phase, update func(*RunState)) {
	e.mu.Lock()
	e.state.Phase = phase
	e.state.UpdatedAt = time.Now()
	if update != nil {
		update(&e.state)
	}
	e.mu.Unlock()
	logging.Info("phase transition", "phase", phase.String())
}

// Execute runs a task to completion and returns its report. Planning
// failure and context cancellation are the only fatal outcomes; both still
// return a partial report describing how far the run got.
func (e *Engine) Execute(ctx context.Context, task Task) (report.Report, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	started := time.Now()

	e.mu.Lock()
	e.state = RunState{TaskID: task.ID, Phase: PhaseReceived, StartedAt: started, UpdatedAt: started}
	e.mu.Unlock()
	logging.Info("task received", "task", task.ID, "description", task.Description)

	// Context gathering: graph query and image analysis run in parallel;
	// both are best-effort.
	e.transition(PhaseContextGathering, nil)
	staticBlock, graphBlock := e.gatherContext(ctx, task)
	contextBlock := joinBlocks(staticBlock, graphBlock)

	if err := ctx.Err(); err != nil {
		return e.fail(ctx, task, started, nil, nil, err)
	}

	// Planning is fatal on failure: no plan, nothing to execute.
	e.transition(PhasePlanning, nil)
	p, err := e.planner.Create(ctx, task.ID, task.Description, contextBlock)
	if err != nil {
		return e.fail(ctx, task, started, nil, nil, err)
	}

	e.transition(PhaseExecuting, func(s *RunState) { s.Subtasks = len(p.Subtasks) })
	descs := make(map[string]string, len(p.Subtasks))
	var results []executor.Result
	for i, st := range p.Subtasks {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, task, started, results, descs, err)
		}
		e.transition(PhaseExecuting, func(s *RunState) { s.Subtask = i })
		descs[st.ID] = st.Description
		res := e.executor.Run(ctx, st, contextBlock)
		results = append(results, res)

		// Files written by this subtask feed the graph so later subtasks
		// see them in their context. Context refreshes only between
		// subtasks, never within one.
		if updated := e.updateGraph(ctx, res.Files); updated {
			graphBlock = graph.FormatContext(e.queryGraph(task.Description))
			contextBlock = joinBlocks(staticBlock, graphBlock)
		}
	}

	// Healing never fails the run; its outcome lands in the report.
	e.transition(PhaseHealing, nil)
	var healing []envmgr.Report
	if e.envmgr != nil {
		healing, err = e.envmgr.InstallAll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return e.fail(ctx, task, started, results, descs, err)
			}
			logging.Warn("environment healing errored", "error", err)
		}
	}

	e.transition(PhaseFinalizing, nil)
	rep := e.finalizer.Build(ctx, task.Description, results, descs)
	rep.Healing = healing
	rep.SecurityEvents = e.validator.Events()
	rep.StartedAt = started
	rep.FinishedAt = time.Now()

	e.transition(PhaseDone, nil)
	logging.Info("task done",
		"task", task.ID,
		"files", len(rep.CreatedFiles),
		"elapsed", rep.FinishedAt.Sub(started))
	return rep, nil
}

// gatherContext assembles the planning context: the static part (caller
// overrides plus image description) and the graph neighborhood. Every
// source is best-effort.
func (e *Engine) gatherContext(ctx context.Context, task Task) (string, string) {
	var graphBlock, imageBlock string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if e.graph == nil {
			return nil
		}
		graphBlock = graph.FormatContext(e.queryGraph(task.Description))
		return nil
	})
	g.Go(func() error {
		if e.vision == nil || len(task.Images) == 0 {
			return nil
		}
		desc, err := e.vision.Describe(gctx, task.Images)
		if err != nil {
			logging.Warn("image analysis failed, continuing without it", "error", err)
			return nil
		}
		if desc != "" {
			imageBlock = "## UI design description\n\n" + desc
		}
		return nil
	})
	_ = g.Wait()

	return joinBlocks(task.ContextOverrides, imageBlock), graphBlock
}

// updateGraph re-ingests freshly written files. Failures degrade context
// quality only.
func (e *Engine) updateGraph(ctx context.Context, files []executor.AppliedFile) bool {
	if e.ingester == nil || e.graph == nil || len(files) == 0 {
		return false
	}
	updated := false
	for _, f := range files {
		if err := e.ingester.IngestFile(ctx, e.ws.Root(), f.Path); err != nil {
			logging.Debug("graph update failed", "path", f.Path, "error", err)
			continue
		}
		updated = true
	}
	if updated {
		if err := e.graph.Save(); err != nil {
			logging.Warn("graph save failed", "error", err)
		}
	}
	return updated
}

// queryGraph matches each significant word of the description against the
// graph and merges the neighborhoods, deduplicated by node and edge
// identity.
func (e *Engine) queryGraph(description string) graph.QueryResult {
	var merged graph.QueryResult
	seenNodes := make(map[string]bool)
	seenEdges := make(map[string]bool)

	for _, word := range keywords(description) {
		result := e.graph.Query(word)
		for _, node := range result.Nodes {
			if !seenNodes[node.ID] {
				seenNodes[node.ID] = true
				merged.Nodes = append(merged.Nodes, node)
			}
		}
		for _, node := range result.Neighbors {
			if !seenNodes[node.ID] {
				seenNodes[node.ID] = true
				merged.Neighbors = append(merged.Neighbors, node)
			}
		}
		for _, edge := range result.Edges {
			key := edge.From + "|" + string(edge.Kind) + "|" + edge.To
			if !seenEdges[key] {
				seenEdges[key] = true
				merged.Edges = append(merged.Edges, edge)
			}
		}
	}
	return merged
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "make": true, "create": true,
	"build": true, "write": true, "implement": true, "improve": true,
	"update": true, "then": true, "should": true, "using": true,
}

func keywords(description string) []string {
	var words []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(description)) {
		word := strings.Trim(field, ".,;:!?'\"()")
		if len(word) < 3 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		words = append(words, word)
	}
	return words
}

func joinBlocks(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += p
	}
	return out
}

// fail ends the run in PhaseFailed with a partial report.
func (e *Engine) fail(ctx context.Context, task Task, started time.Time, results []executor.Result, descs map[string]string, cause error) (report.Report, error) {
	e.transition(PhaseFailed, func(s *RunState) { s.Err = cause.Error() })
	logging.Error("task failed", "task", task.ID, "error", cause)

	rep := report.Report{
		ID:      uuid.NewString(),
		Task:    task.Description,
		Summary: fmt.Sprintf("run failed: %v", cause),
	}
	if len(results) > 0 && ctx.Err() == nil {
		rep = e.finalizer.Build(ctx, task.Description, results, descs)
		rep.Summary = fmt.Sprintf("run failed: %v. %s", cause, rep.Summary)
	}
	rep.SecurityEvents = e.validator.Events()
	rep.StartedAt = started
	rep.FinishedAt = time.Now()
	return rep, cause
}
