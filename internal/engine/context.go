package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
)

// Guardrails bounds a single pass. Zero values disable the corresponding
// limit.
type Guardrails struct {
	// MaxNodes caps how many evaluation callbacks one pass may invoke.
	MaxNodes int
	// MaxDuration caps the wall-clock time of one pass. Checked between
	// node evaluations; a long-running callback is the host's problem.
	MaxDuration time.Duration
}

// EvalOptions parameterizes one Evaluate call.
type EvalOptions struct {
	// Time is the logical time of the frame being evaluated, in seconds.
	Time float64
	// Guardrails bound the pass. The zero value means unbounded.
	Guardrails Guardrails
}

// PassContext is the ambient state handed to every evaluation callback. It
// lives for exactly one pass; nodes that need history must read it through
// a feedback edge, not by retaining the context.
type PassContext struct {
	// Pass is the monotonically increasing pass counter, starting at 1.
	Pass uint64
	// ID correlates every log line and fault of this pass.
	ID uuid.UUID
	// Time is the logical frame time, in seconds.
	Time float64
	// Guardrails is the active budget, exposed read-only to callbacks.
	Guardrails Guardrails

	ctx     context.Context
	started time.Time
}

// Context returns the cancellation context of the pass.
func (p *PassContext) Context() context.Context { return p.ctx }

// Elapsed returns the wall-clock time since the pass started.
func (p *PassContext) Elapsed() time.Duration { return time.Since(p.started) }

// Callback is the user-supplied evaluation function of a node. It receives
// the node's input values bound in slot order (an unconnected slot reads the
// declared type's null) and must return synchronously; the engine never
// suspends mid-evaluation.
type Callback func(inputs []cty.Value, pctx *PassContext) (cty.Value, error)

// ValueSpec declares a node's input and output value types. Connect checks
// compatibility against these once; evaluation trusts them afterwards.
type ValueSpec struct {
	Inputs []cty.Type
	Output cty.Type
}

// Arity returns the declared input count.
func (s ValueSpec) Arity() int { return len(s.Inputs) }

// InputType returns the declared type of a slot, defaulting to the dynamic
// pseudo-type for out-of-range slots so callers get a uniform fallback.
func (s ValueSpec) InputType(slot int) cty.Type {
	if slot < 0 || slot >= len(s.Inputs) {
		return cty.DynamicPseudoType
	}
	return s.Inputs[slot]
}
