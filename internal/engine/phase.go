package engine

// Phase is one state of a run. Transitions are strictly forward; a run
// ends in PhaseDone or PhaseFailed.
type Phase int

const (
	PhaseReceived Phase = iota
	PhaseContextGathering
	PhasePlanning
	PhaseExecuting
	PhaseHealing
	PhaseFinalizing
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseReceived:
		return "received"
	case PhaseContextGathering:
		return "context_gathering"
	case PhasePlanning:
		return "planning"
	case PhaseExecuting:
		return "executing"
	case PhaseHealing:
		return "healing"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}
