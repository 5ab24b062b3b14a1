package chatstream

// PhaseState is the progress of one phase (reasoning or content) of one output.
// Transitions are monotonic: Init → Pending → Complete, or Init → Complete.
type PhaseState int

const (
	PhaseInit     PhaseState = iota // No delta observed yet.
	PhasePending                    // Deltas are arriving.
	PhaseComplete                   // Phase ended; later signals are ignored.
)

func (s PhaseState) String() string {
	switch s {
	case PhaseInit:
		return "init"
	case PhasePending:
		return "pending"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// begin records a delta for the phase. It reports false when the phase is
// already complete and the delta must not be delivered.
func (s *PhaseState) begin() bool {
	switch *s {
	case PhaseInit:
		*s = PhasePending
		return true
	case PhasePending:
		return true
	default:
		return false
	}
}

// OutputContext is a snapshot of one output's progress, built fresh for every
// callback. Consumers must not retain it past the callback.
type OutputContext struct {
	TotalOutputs int
	OutputIndex  int
	Reasoning    PhaseState
	Content      PhaseState
}

// phases tracks both phases of a single output.
type phases struct {
	reasoning PhaseState
	content   PhaseState
}
