// Package feedback resolves authored feedback edges: the classification of
// the edge set into forward and feedback partitions, and the previous-pass
// snapshot that feedback reads are served from.
//
// Feedback is declared by the graph author, never inferred from cycle
// search; inference is ambiguous as soon as two cycles overlap. The engine's
// job is only to honor the declaration: strip feedback edges from ordering
// and route their reads through a value frozen at the end of the last
// committed pass. This is the classic delay-register scheme: read previous,
// compute the acyclic remainder, commit the new values as the next pass's
// previous.
package feedback

import (
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/opflow/internal/graph"
)

// Classification is the partition of the edge set by authored kind.
type Classification struct {
	Forward  []graph.Edge
	Feedback []graph.Edge
}

// Classify partitions the topology's edges and asserts the structural
// invariant that the forward partition is a DAG. The invariant is enforced
// incrementally at Connect time; re-checking here turns a hypothetical
// bookkeeping bug into a loud structural error instead of a scheduling hang.
func Classify(t *graph.Topology) (Classification, error) {
	if err := t.Validate(); err != nil {
		return Classification{}, err
	}
	var c Classification
	for _, e := range t.Edges() {
		if e.Kind == graph.Feedback {
			c.Feedback = append(c.Feedback, e)
		} else {
			c.Forward = append(c.Forward, e)
		}
	}
	return c, nil
}

// Snapshot is the double-buffered previous-pass view of node values. During
// a pass every feedback read is served from here, regardless of what the
// current pass has computed for the source so far.
type Snapshot struct {
	mu   sync.RWMutex
	prev map[string]cty.Value
}

// NewSnapshot returns an empty snapshot. Before the first committed pass
// every read misses, and the caller substitutes the declared first-pass
// default.
func NewSnapshot() *Snapshot {
	return &Snapshot{prev: make(map[string]cty.Value)}
}

// Read returns the source node's value as of the end of the last committed
// pass.
func (s *Snapshot) Read(id string) (cty.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.prev[id]
	return v, ok
}

// Commit replaces the snapshot with the given committed-pass view. The map
// is copied; the caller keeps ownership of its argument.
func (s *Snapshot) Commit(view map[string]cty.Value) {
	next := make(map[string]cty.Value, len(view))
	for id, v := range view {
		next[id] = v
	}
	s.mu.Lock()
	s.prev = next
	s.mu.Unlock()
}

// Forget drops a removed node's entry so a later node reusing the ID cannot
// observe the old value.
func (s *Snapshot) Forget(id string) {
	s.mu.Lock()
	delete(s.prev, id)
	s.mu.Unlock()
}

// Len returns the number of snapshotted values.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prev)
}
