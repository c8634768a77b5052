// Package agent defines the agent roles the engine spawns, classifies tasks
// into categories, and selects model profiles per spawned agent.
package agent

// Role identifies what a spawned agent is for.
type Role string

const (
	RolePlanner   Role = "planner"
	RoleExecutor  Role = "executor"
	RoleAnalyzer  Role = "analyzer"
	RoleFinalizer Role = "finalizer"
	RoleExtractor Role = "extractor"
	RoleVision    Role = "vision"
)

// TaskCategory classifies what kind of work a task description asks for.
// The category steers model selection for executor agents.
type TaskCategory string

const (
	CategoryCoding    TaskCategory = "coding"
	CategoryReasoning TaskCategory = "reasoning"
	CategoryMath      TaskCategory = "math"
	CategoryCreative  TaskCategory = "creative"
	CategoryAnalysis  TaskCategory = "analysis"
	CategoryPlanning  TaskCategory = "planning"
	CategoryGeneral   TaskCategory = "general"
)

var categoryKeywords = map[TaskCategory][]string{
	CategoryCoding: {
		"code", "program", "function", "class", "debug", "implement",
		"script", "algorithm", "python", "javascript", "java", "api",
		"refactor", "optimize code", "fix bug", "write code", "html", "css",
	},
	CategoryReasoning: {
		"reason", "logic", "deduce", "infer", "conclude", "prove",
		"argue", "justify", "explain why", "figure out", "solve problem",
	},
	CategoryMath: {
		"calculate", "compute", "solve", "equation", "formula", "math",
		"arithmetic", "algebra", "geometry", "statistics", "probability",
		"sum", "multiply", "divide",
	},
	CategoryCreative: {
		"story", "poem", "article", "blog", "creative",
		"compose", "draft", "imagine", "design content",
	},
	CategoryAnalysis: {
		"analyze", "examine", "evaluate", "assess", "review", "study",
		"investigate", "research", "compare", "contrast", "interpret",
	},
	CategoryPlanning: {
		"plan", "strategy", "roadmap", "schedule", "organize", "structure",
		"architecture", "design system", "workflow", "pipeline", "framework",
	},
}

// categoryModels ranks local models per category, best first. The first
// entry is used; the rest document the fallback order for operators
// overriding models in config.
var categoryModels = map[TaskCategory][]string{
	CategoryCoding:    {"qwen2.5-coder:7b", "deepseek-coder:6.7b", "codellama:7b"},
	CategoryReasoning: {"qwen2.5:14b", "llama3.1:8b", "phi3:medium"},
	CategoryMath:      {"qwen2.5:14b", "deepseek-math:7b", "llama3.1:8b"},
	CategoryCreative:  {"llama3.1:8b", "mistral:7b", "gemma2:9b"},
	CategoryAnalysis:  {"llama3.1:8b", "qwen2.5:14b", "mistral:7b"},
	CategoryPlanning:  {"qwen2.5:14b", "llama3.1:8b", "mixtral:8x7b"},
	CategoryGeneral:   {"llama3.2:3b", "phi3:mini", "mistral:7b"},
}
