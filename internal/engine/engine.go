package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/opflow/internal/cache"
	"github.com/vk/opflow/internal/feedback"
	"github.com/vk/opflow/internal/graph"
)

// Engine evaluates one operator graph incrementally. Structural mutations
// and evaluation passes on the same engine are serialized: mutations take
// the write half of structMu, a pass holds the read half for its whole
// duration, so a mutation issued mid-pass applies before the next pass.
// Independent Engine instances share nothing and may run concurrently.
type Engine struct {
	structMu sync.RWMutex
	passMu   sync.Mutex

	topo  *graph.Topology
	cache *cache.Store
	snap  *feedback.Snapshot

	// mu guards nodes, pending and the lifetime counters. It is the only
	// lock MarkDirty needs, so dirty-marking from a UI thread never waits
	// for an in-flight pass.
	mu      sync.Mutex
	nodes   map[string]*nodeState
	pending map[string]struct{}

	passCounter uint64
	totalEvals  uint64
	totalHits   uint64
	totalMisses uint64
	lastPassDur time.Duration
}

// nodeState is the engine-side record of one node: its callback, declared
// types and diagnostics. Structural fields never change after AddNode;
// mutable fields are touched either under structMu.Lock (mutations) or by
// the single in-flight pass.
type nodeState struct {
	id       string
	handle   graph.Handle
	callback Callback
	spec     ValueSpec

	// vacated tracks input slots that lost their source. A node with any
	// vacated slot stays permanently dirty and reads the declared-type
	// null there; each slot clears individually when reconnected, so a
	// node wired on purpose to a subset of its slots settles again.
	vacated map[int]struct{}

	evalCount    uint64
	lastEvalTime time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCacheCapacity bounds the result cache, enabling
// least-recently-evaluated eviction. Intended for very large graphs only.
func WithCacheCapacity(capacity int) Option {
	return func(e *Engine) {
		e.cache = cache.NewWithCapacity(capacity)
	}
}

// New returns an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		topo:    graph.New(),
		cache:   cache.New(),
		snap:    feedback.NewSnapshot(),
		nodes:   make(map[string]*nodeState),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddNode registers an operator instance under the given ID. New nodes
// start dirty: they are evaluated on the next pass.
func (e *Engine) AddNode(id string, spec ValueSpec, cb Callback) (graph.Handle, error) {
	if cb == nil {
		return graph.Handle{}, fmt.Errorf("node %q: nil evaluation callback", id)
	}

	e.structMu.Lock()
	defer e.structMu.Unlock()

	h, err := e.topo.AddNode(id)
	if err != nil {
		return graph.Handle{}, err
	}

	e.mu.Lock()
	e.nodes[id] = &nodeState{id: id, handle: h, callback: cb, spec: spec}
	e.pending[id] = struct{}{}
	e.mu.Unlock()
	return h, nil
}

// RemoveNode deletes a node and every edge touching it. Direct dependents
// lose the corresponding input: they become permanently dirty and read the
// unconnected-input fallback until reconnected. The node's cached and
// snapshotted values are dropped so a later node reusing the ID starts
// clean.
func (e *Engine) RemoveNode(id string) error {
	e.structMu.Lock()
	defer e.structMu.Unlock()

	dropped, err := e.topo.RemoveNode(id)
	if err != nil {
		return err
	}

	e.cache.Delete(id)
	e.snap.Forget(id)

	e.mu.Lock()
	delete(e.nodes, id)
	delete(e.pending, id)
	for _, edge := range dropped {
		if ns := e.nodes[edge.To]; ns != nil {
			ns.vacate(edge.Slot)
			e.pending[edge.To] = struct{}{}
		}
	}
	e.mu.Unlock()
	return nil
}

// Connect adds an edge feeding input slot `slot` of `to` from the output of
// `from`. Setting feedback declares that the destination reads the source's
// previous-pass value, which exempts the edge from the acyclicity check.
// The source's declared output type must be convertible to the slot's
// declared input type; this is checked here, once, not per evaluation.
// The destination is marked dirty: its input set changed.
func (e *Engine) Connect(from, to string, slot int, isFeedback bool) error {
	e.structMu.Lock()
	defer e.structMu.Unlock()

	e.mu.Lock()
	src, ok := e.nodes[from]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", graph.ErrUnknownNode, from)
	}
	dst, ok := e.nodes[to]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", graph.ErrUnknownNode, to)
	}
	e.mu.Unlock()

	if slot < 0 || slot >= dst.spec.Arity() {
		return fmt.Errorf("%w: %s slot %d (arity %d)", ErrSlotRange, to, slot, dst.spec.Arity())
	}
	if err := checkAssignable(src.spec.Output, dst.spec.InputType(slot)); err != nil {
		return fmt.Errorf("%s -> %s slot %d: %w", from, to, slot, err)
	}

	kind := graph.Forward
	if isFeedback {
		kind = graph.Feedback
	}
	if err := e.topo.Connect(from, to, slot, kind); err != nil {
		return err
	}

	e.mu.Lock()
	delete(dst.vacated, slot)
	e.pending[to] = struct{}{}
	e.mu.Unlock()
	return nil
}

// Disconnect removes the edge feeding input slot `slot` of `to`. The
// destination becomes permanently dirty with the unconnected-input fallback
// on that slot.
func (e *Engine) Disconnect(from, to string, slot int) error {
	e.structMu.Lock()
	defer e.structMu.Unlock()

	if err := e.topo.Disconnect(from, to, slot); err != nil {
		return err
	}

	e.mu.Lock()
	if ns := e.nodes[to]; ns != nil {
		ns.vacate(slot)
		e.pending[to] = struct{}{}
	}
	e.mu.Unlock()
	return nil
}

// MarkDirty records value changes on the given nodes. The downstream
// expansion happens at the start of the next pass, so marking the same node
// repeatedly between passes is free.
func (e *Engine) MarkDirty(ids ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		if _, ok := e.nodes[id]; !ok {
			return fmt.Errorf("%w: %q", graph.ErrUnknownNode, id)
		}
	}
	for _, id := range ids {
		e.pending[id] = struct{}{}
	}
	return nil
}

// GetCachedValue returns the node's last committed value. It does not
// count against the cache hit rate; it is the read path the host uses to
// display values, including the stale-but-valid value of a faulted node.
func (e *Engine) GetCachedValue(id string) (cty.Value, bool) {
	ent, ok := e.cache.Peek(id)
	if !ok {
		return cty.NilVal, false
	}
	return ent.Value, true
}

// GetStatistics returns the engine-lifetime statistics.
func (e *Engine) GetStatistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	var rate float64
	if total := e.totalHits + e.totalMisses; total > 0 {
		rate = float64(e.totalHits) / float64(total)
	}
	return Statistics{
		TotalPasses:      e.passCounter,
		TotalEvaluations: e.totalEvals,
		CacheHitRate:     rate,
		LastPassDuration: e.lastPassDur,
	}
}

// Topology exposes read-only access to the underlying structure for
// diagnostics and tests.
func (e *Engine) Topology() *graph.Topology { return e.topo }

// checkAssignable reports whether a value of type out can feed a slot
// declared as type in.
func checkAssignable(out, in cty.Type) error {
	if in == cty.DynamicPseudoType || out == cty.DynamicPseudoType {
		return nil
	}
	if out.Equals(in) {
		return nil
	}
	if conv := convert.GetConversion(out, in); conv != nil {
		return nil
	}
	return fmt.Errorf("%w: %s is not assignable to %s", ErrTypeMismatch, out.FriendlyName(), in.FriendlyName())
}

// vacate records that the given input slot lost its source.
func (ns *nodeState) vacate(slot int) {
	if ns.vacated == nil {
		ns.vacated = make(map[int]struct{})
	}
	ns.vacated[slot] = struct{}{}
}
