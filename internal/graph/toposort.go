package graph

import "sort"

// OrderEntry is one element of a topological order. Satisfied entries are
// ancestors whose cached value is already fresh: they appear only so their
// dependents' in-degree bookkeeping resolves, and must not be re-evaluated.
type OrderEntry struct {
	ID        string
	Satisfied bool
}

// TopologicalOrder returns an execution order for the given subset of node
// IDs using Kahn's algorithm over forward edges. Direct forward ancestors of
// subset members that are not themselves in the subset are included as
// Satisfied sentinels. Feedback edges are ignored entirely.
//
// The order is deterministic: among simultaneously ready nodes the smallest
// ID goes first. A cycle among forward edges inside the working set is
// reported as a CycleError; it is never silently resolved.
func (t *Topology) TopologicalOrder(subset map[string]struct{}) ([]OrderEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for id := range subset {
		if _, ok := t.byID[id]; !ok {
			return nil, unknownNode(id)
		}
	}

	// Working set: the subset plus its fresh direct forward ancestors.
	working := make(map[string]bool, len(subset))
	sentinel := make(map[string]bool)
	for id := range subset {
		working[id] = true
	}
	for id := range subset {
		e := &t.arena[t.byID[id].index]
		for _, src := range e.inputs {
			if src.kind != Forward {
				continue
			}
			srcID := t.arena[src.from.index].id
			if !working[srcID] {
				working[srcID] = true
				sentinel[srcID] = true
			}
		}
	}

	// In-degree restricted to forward edges inside the working set.
	indegree := make(map[string]int, len(working))
	for id := range working {
		e := &t.arena[t.byID[id].index]
		n := 0
		for _, src := range e.inputs {
			if src.kind == Forward && working[t.arena[src.from.index].id] {
				n++
			}
		}
		indegree[id] = n
	}

	ready := make([]string, 0, len(working))
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]OrderEntry, 0, len(working))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, OrderEntry{ID: id, Satisfied: sentinel[id]})

		e := &t.arena[t.byID[id].index]
		var unlocked []string
		for dh, slots := range e.dependents {
			depID := t.arena[dh.index].id
			if !working[depID] || !hasForward(slots) {
				continue
			}
			// One unit of in-degree per forward slot fed by this node.
			for _, k := range slots {
				if k != Forward {
					continue
				}
				indegree[depID]--
			}
			if indegree[depID] == 0 {
				unlocked = append(unlocked, depID)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sort.Strings(ready)
		}
	}

	if len(order) != len(working) {
		var stuck []string
		for id := range working {
			if indegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Involved: stuck}
	}
	return order, nil
}
