package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/opflow/internal/ctxlog"
	"github.com/vk/opflow/internal/dirty"
	"github.com/vk/opflow/internal/feedback"
	"github.com/vk/opflow/internal/graph"
)

// Evaluate runs one pass over the graph: expand the pending changes into
// the dirty set, order it topologically with feedback edges stripped,
// execute the callbacks in order, then commit results and the feedback
// snapshot atomically.
//
// Cancellation (via ctx) and guardrails are polled between node
// evaluations. An aborted pass commits nothing; the cache and snapshot stay
// at the previous committed state and the pending changes are retried next
// pass.
func (e *Engine) Evaluate(ctx context.Context, opts EvalOptions) PassResult {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	e.structMu.RLock()
	defer e.structMu.RUnlock()

	// Consume the pending set: marks landing while the pass executes go
	// into a fresh set and survive until the next pass. An aborted pass
	// puts the consumed marks back.
	e.mu.Lock()
	pass := e.passCounter + 1
	consumed := e.pending
	e.pending = make(map[string]struct{})
	e.mu.Unlock()

	changed := make([]string, 0, len(consumed))
	for id := range consumed {
		changed = append(changed, id)
	}
	sort.Strings(changed)

	pctx := &PassContext{
		Pass:       pass,
		ID:         uuid.New(),
		Time:       opts.Time,
		Guardrails: opts.Guardrails,
		ctx:        ctx,
		started:    time.Now(),
	}
	logger := ctxlog.FromContext(ctx).With("pass", pass, "passID", pctx.ID.String())
	stats := PassStats{Pass: pass, PassID: pctx.ID}

	state := statePropagating
	logger.Debug("Pass started.", "state", state.String(), "changed", len(changed))

	dirtySet, err := dirty.Expand(e.topo, changed)
	if err != nil {
		return e.abort(pctx, state, stats, consumed, err, logger)
	}

	state = stateOrdering
	cls, err := feedback.Classify(e.topo)
	if err != nil {
		return e.abort(pctx, state, stats, consumed, err, logger)
	}
	order, err := e.topo.TopologicalOrder(dirtySet)
	if err != nil {
		return e.abort(pctx, state, stats, consumed, err, logger)
	}
	logger.Debug("Pass ordered.", "state", state.String(),
		"dirty", len(dirtySet), "order", len(order), "feedbackEdges", len(cls.Feedback))

	state = stateExecuting
	staging := make(map[string]cty.Value)
	faults := make(map[string]NodeFault)

	for _, ent := range order {
		// Cooperative checkpoints: polled between node evaluations only.
		if err := ctx.Err(); err != nil {
			return e.abort(pctx, state, stats, consumed, fmt.Errorf("%w: %v", ErrCancelled, err), logger)
		}
		if g := pctx.Guardrails; g.MaxDuration > 0 && pctx.Elapsed() > g.MaxDuration {
			return e.abort(pctx, state, stats, consumed,
				fmt.Errorf("%w: wall-clock budget %s spent at node %q", ErrGuardrail, g.MaxDuration, ent.ID), logger)
		}

		e.mu.Lock()
		ns := e.nodes[ent.ID]
		e.mu.Unlock()
		if ns == nil {
			continue
		}

		_, isDirty := dirtySet[ent.ID]
		if ent.Satisfied || !isDirty {
			// Fresh ancestor or clean node: reuse the cached value.
			if _, ok := e.cache.Get(ent.ID); ok {
				stats.CacheHits++
				continue
			}
			// Nothing cached after all (e.g. evicted between passes):
			// fall through and evaluate.
		}

		inputs, upstream := e.gatherInputs(ns, staging, faults)
		if upstream != "" {
			f := NodeFault{
				ID:         ent.ID,
				Err:        fmt.Errorf("%w: %q", ErrUpstreamFault, upstream),
				Propagated: true,
			}
			faults[ent.ID] = f
			logger.Debug("Node skipped: upstream fault.", "nodeID", ent.ID, "upstream", upstream)
			continue
		}

		if g := pctx.Guardrails; g.MaxNodes > 0 && stats.Evaluated >= g.MaxNodes {
			return e.abort(pctx, state, stats, consumed,
				fmt.Errorf("%w: node budget %d spent at node %q", ErrGuardrail, g.MaxNodes, ent.ID), logger)
		}

		value, evalErr := ns.callback(inputs, pctx)
		stats.Evaluated++
		stats.CacheMisses++
		ns.evalCount++
		ns.lastEvalTime = time.Now()

		if evalErr != nil {
			faults[ent.ID] = NodeFault{ID: ent.ID, Err: evalErr}
			logger.Warn("Node evaluation failed.", "nodeID", ent.ID, "error", evalErr)
			continue
		}
		staging[ent.ID] = value
	}

	return e.commit(pctx, stats, dirtySet, staging, faults, logger)
}

// gatherInputs binds a node's input values in slot order. Forward inputs
// read the staged value from this pass, falling back to the committed
// cache for fresh ancestors; feedback inputs read the previous-pass
// snapshot regardless of anything computed this pass. Unconnected slots and
// first-pass feedback reads bind the declared type's null.
//
// The returned upstream ID is non-empty when a forward dependency faulted
// this pass, in which case the node must not run.
func (e *Engine) gatherInputs(ns *nodeState, staging map[string]cty.Value, faults map[string]NodeFault) ([]cty.Value, string) {
	inputs := make([]cty.Value, ns.spec.Arity())
	for i := range inputs {
		inputs[i] = cty.NullVal(ns.spec.InputType(i))
	}

	deps, err := e.topo.Dependencies(ns.id)
	if err != nil {
		return inputs, ""
	}
	for _, in := range deps {
		if in.Slot < 0 || in.Slot >= len(inputs) {
			continue
		}
		if in.Kind == graph.Feedback {
			if v, ok := e.snap.Read(in.Source); ok {
				inputs[in.Slot] = v
			}
			continue
		}
		if _, faulted := faults[in.Source]; faulted {
			return nil, in.Source
		}
		if v, ok := staging[in.Source]; ok {
			inputs[in.Slot] = v
		} else if ent, ok := e.cache.Peek(in.Source); ok {
			inputs[in.Slot] = ent.Value
		}
	}
	return inputs, ""
}

// commit publishes the staged results, refreshes the feedback snapshot and
// advances the pass counter. Faulted nodes (and ones with a vacated slot)
// re-enter the pending set so the next pass picks them up again, as do the
// feedback readers of every node that just committed a new value: their
// staleness is resolved at the start of the next pass.
func (e *Engine) commit(pctx *PassContext, stats PassStats, dirtySet map[string]struct{}, staging map[string]cty.Value, faults map[string]NodeFault, logger *slog.Logger) PassResult {
	var evicted []string
	for id, v := range staging {
		evicted = append(evicted, e.cache.Put(id, v, pctx.Pass)...)
	}
	e.snap.Commit(e.cache.View())

	feedbackStale := make(map[string]struct{})
	for id := range staging {
		readers, err := e.topo.FeedbackDependents(id)
		if err != nil {
			continue
		}
		for _, r := range readers {
			feedbackStale[r] = struct{}{}
		}
	}

	stats.Duration = pctx.Elapsed()

	e.mu.Lock()
	e.passCounter = pctx.Pass
	e.totalEvals += uint64(stats.Evaluated)
	e.totalHits += uint64(stats.CacheHits)
	e.totalMisses += uint64(stats.CacheMisses)
	e.lastPassDur = stats.Duration
	for id := range faults {
		if _, ok := e.nodes[id]; ok {
			e.pending[id] = struct{}{}
		}
	}
	for id := range dirtySet {
		if ns := e.nodes[id]; ns != nil && len(ns.vacated) > 0 {
			e.pending[id] = struct{}{}
		}
	}
	for id := range feedbackStale {
		if _, ok := e.nodes[id]; ok {
			e.pending[id] = struct{}{}
		}
	}
	for _, id := range evicted {
		if _, ok := e.nodes[id]; ok {
			e.pending[id] = struct{}{}
		}
	}
	e.mu.Unlock()

	result := PassResult{Succeeded: true, Stats: stats}
	for _, f := range faults {
		result.FaultedNodes = append(result.FaultedNodes, f)
	}
	sort.Slice(result.FaultedNodes, func(i, j int) bool {
		return result.FaultedNodes[i].ID < result.FaultedNodes[j].ID
	})

	logger.Debug("Pass committed.", "state", stateCommitted.String(),
		"evaluated", stats.Evaluated, "hits", stats.CacheHits,
		"misses", stats.CacheMisses, "faulted", len(result.FaultedNodes),
		"duration", stats.Duration)
	return result
}

// abort discards all staged work and reports the faulted pass. Nothing is
// committed: the cache, snapshot and pass counter keep their last committed
// state, and the consumed marks merge back into the pending set so the work
// is retried alongside anything marked mid-pass.
func (e *Engine) abort(pctx *PassContext, state passState, stats PassStats, consumed map[string]struct{}, reason error, logger *slog.Logger) PassResult {
	stats.Duration = pctx.Elapsed()

	e.mu.Lock()
	for id := range consumed {
		e.pending[id] = struct{}{}
	}
	e.lastPassDur = stats.Duration
	e.mu.Unlock()

	logger.Warn("Pass faulted.", "state", stateFaulted.String(), "fromState", state.String(), "reason", reason)
	return PassResult{Succeeded: false, Reason: reason, Stats: stats}
}
