package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned by Connect when the source's declared
	// output type cannot convert to the destination slot's declared input
	// type. The check runs once, at connection time, never per evaluation.
	ErrTypeMismatch = errors.New("incompatible value types")
	// ErrSlotRange is returned by Connect when the slot index is outside
	// the destination's declared input arity.
	ErrSlotRange = errors.New("input slot out of range")
	// ErrGuardrail faults a pass when the configured node-count or
	// wall-clock budget is exhausted.
	ErrGuardrail = errors.New("evaluation guardrail exceeded")
	// ErrCancelled faults a pass when the caller's context is done. The
	// flag is polled between node evaluations, never mid-callback.
	ErrCancelled = errors.New("evaluation cancelled")
	// ErrUpstreamFault marks a node skipped because a node it depends on
	// faulted in the same pass.
	ErrUpstreamFault = errors.New("upstream node faulted")
)

// NodeFault describes one faulted node in a pass. Propagated faults are
// dependents skipped because of an upstream failure, as opposed to the
// node's own callback failing.
type NodeFault struct {
	ID         string
	Err        error
	Propagated bool
}

func (f NodeFault) String() string {
	if f.Propagated {
		return fmt.Sprintf("%s (propagated: %v)", f.ID, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.ID, f.Err)
}
