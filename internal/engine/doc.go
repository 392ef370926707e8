// Package engine is the orchestration layer: it owns the public API the
// host (renderer, editor) talks to, and runs the per-frame evaluation pass
// as a small state machine over the leaf packages.
//
// A pass moves Idle -> Propagating -> Ordering -> Executing -> Committed.
// Propagating expands the pending change set into the dirty set, Ordering
// classifies feedback edges and produces a topological order, Executing
// walks the order invoking evaluation callbacks, and Committed atomically
// publishes the staged results and the feedback snapshot. Cycle detection at
// ordering time, guardrail exhaustion and cancellation abort the pass into
// the terminal Faulted state, leaving the cache exactly as the last
// committed pass left it.
//
// A failing evaluation callback does not fault the pass: the node and its
// transitive dependents are recorded per pass, keep their last good cached
// value, and stay dirty; unrelated branches continue evaluating.
package engine
