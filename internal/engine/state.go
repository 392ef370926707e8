package engine

// passState tracks where in its lifecycle a pass is. The progression is
// strictly Idle -> Propagating -> Ordering -> Executing -> Committed, with
// Faulted reachable from any non-terminal state.
type passState int32

const (
	stateIdle passState = iota
	statePropagating
	stateOrdering
	stateExecuting
	stateCommitted
	stateFaulted
)

func (s passState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePropagating:
		return "propagating"
	case stateOrdering:
		return "ordering"
	case stateExecuting:
		return "executing"
	case stateCommitted:
		return "committed"
	case stateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}
