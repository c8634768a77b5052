package security

import (
	"strings"
	"sync"
)

// ActionKind says what is being validated.
type ActionKind string

const (
	KindCommand ActionKind = "command"
	KindPath    ActionKind = "path"
)

// Action is one proposed operation to screen before execution.
type Action struct {
	Kind  ActionKind
	Value string
}

// Result is the validator's verdict.
type Result struct {
	Allowed bool
	Reason  string
	Pattern string // The rule that matched, if any
}

// Allowed is a convenience constructor for a passing result.
func allowed(reason string) Result {
	return Result{Allowed: true, Reason: reason}
}

func denied(reason, pattern string) Result {
	return Result{Allowed: false, Reason: reason, Pattern: pattern}
}

// Event is one recorded denial, kept for the run report.
type Event struct {
	Kind   ActionKind
	Value  string
	Reason string
}

// Validator screens shell commands and file paths before the engine acts on
// them. Validation itself is a pure function of the rule set; the validator
// additionally keeps an in-memory log of denials for reporting. The mutex
// covers both the rule set and the event log, so rules may be added while
// runs are validating.
type Validator struct {
	mu       sync.RWMutex
	commands commandRules
	paths    pathRules
	events   []Event
}

// NewValidator creates a validator with the default rule set, scoped to the
// given workspace root for path checks.
func NewValidator(workspaceRoot string) *Validator {
	return &Validator{
		commands: defaultCommandRules(),
		paths:    defaultPathRules(workspaceRoot),
	}
}

// Validate screens one action. Commands and paths use separate rule sets.
func (v *Validator) Validate(action Action) Result {
	v.mu.RLock()
	var res Result
	switch action.Kind {
	case KindCommand:
		res = v.commands.check(action.Value)
	case KindPath:
		res = v.paths.check(action.Value)
	default:
		res = denied("unknown action kind", "")
	}
	v.mu.RUnlock()

	if !res.Allowed {
		v.record(Event{Kind: action.Kind, Value: truncate(action.Value, 100), Reason: res.Reason})
	}
	return res
}

// AddBlockedCommand adds a command substring to the blocklist.
func (v *Validator) AddBlockedCommand(substr string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commands.blockedSubstrings = append(v.commands.blockedSubstrings, substr)
}

// AddDeniedPath adds a path prefix to the deny-list.
func (v *Validator) AddDeniedPath(prefix string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paths.deniedPrefixes = append(v.paths.deniedPrefixes, prefix)
}

// Events returns a copy of the recorded denial log.
func (v *Validator) Events() []Event {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Event, len(v.events))
	copy(out, v.events)
	return out
}

func (v *Validator) record(e Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, e)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Sanitize strips null bytes and control characters (except newline and tab)
// from untrusted input before it reaches prompts or the filesystem layer.
func Sanitize(input string) string {
	var builder strings.Builder
	builder.Grow(len(input))
	for _, r := range input {
		if r == '\n' || r == '\t' || r >= 32 {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
