package graph

import "sort"

// Resolve returns the current handle for a node ID.
func (t *Topology) Resolve(id string) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byID[id]
	return h, ok
}

// IDOf returns the ID a handle refers to, or false when the handle is stale
// (the node was removed, and the arena row possibly recycled).
func (t *Topology) IDOf(h Handle) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(h.index) >= len(t.arena) {
		return "", false
	}
	e := &t.arena[h.index]
	if !e.used || e.gen != h.gen {
		return "", false
	}
	return e.id, true
}

// Contains reports whether a node with the given ID exists.
func (t *Topology) Contains(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byID[id]
	return ok
}

// Len returns the number of live nodes.
func (t *Topology) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Nodes returns all live node IDs in lexicographic order.
func (t *Topology) Nodes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, t.live)
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies returns the connected inputs of a node, ordered by slot
// index. The order is what gives the evaluation callback its deterministic
// argument binding.
func (t *Topology) Dependencies(id string) ([]Input, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.byID[id]
	if !ok {
		return nil, unknownNode(id)
	}
	e := &t.arena[h.index]
	inputs := make([]Input, 0, len(e.inputs))
	for slot, src := range e.inputs {
		inputs = append(inputs, Input{
			Slot:   slot,
			Source: t.arena[src.from.index].id,
			Kind:   src.kind,
		})
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Slot < inputs[j].Slot })
	return inputs, nil
}

// Dependents returns the IDs of all nodes reading from the given node,
// regardless of edge kind, in lexicographic order.
func (t *Topology) Dependents(id string) ([]string, error) {
	return t.dependents(id, nil)
}

// ForwardDependents returns the IDs of nodes reading from the given node
// through at least one forward edge. Dirty propagation walks these only:
// a feedback reader's staleness is deferred to the next pass.
func (t *Topology) ForwardDependents(id string) ([]string, error) {
	return t.dependents(id, hasForward)
}

// FeedbackDependents returns the IDs of nodes reading from the given node
// through at least one feedback edge. The engine enqueues these after
// committing a recomputed value, which is what resolves a feedback reader's
// staleness on the following pass.
func (t *Topology) FeedbackDependents(id string) ([]string, error) {
	return t.dependents(id, hasFeedback)
}

func (t *Topology) dependents(id string, keep func(map[int]EdgeKind) bool) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.byID[id]
	if !ok {
		return nil, unknownNode(id)
	}
	e := &t.arena[h.index]
	out := make([]string, 0, len(e.dependents))
	for dh, slots := range e.dependents {
		if keep != nil && !keep(slots) {
			continue
		}
		out = append(out, t.arena[dh.index].id)
	}
	sort.Strings(out)
	return out, nil
}

// Edges returns every edge in the topology, sorted by (to, slot). Useful
// for diagnostics and for the feedback classifier.
func (t *Topology) Edges() []Edge {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var edges []Edge
	for i := range t.arena {
		e := &t.arena[i]
		if !e.used {
			continue
		}
		for slot, src := range e.inputs {
			edges = append(edges, Edge{
				From: t.arena[src.from.index].id,
				To:   e.id,
				Slot: slot,
				Kind: src.kind,
			})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Slot < edges[j].Slot
	})
	return edges
}
