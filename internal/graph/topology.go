package graph

import (
	"fmt"
	"sort"
)

// AddNode registers a new node under the given ID and returns its handle.
func (t *Topology) AddNode(id string) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byID[id]; ok {
		return Handle{}, fmt.Errorf("%w: %q", ErrDuplicateNode, id)
	}

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.arena = append(t.arena, entry{})
		idx = uint32(len(t.arena) - 1)
	}

	e := &t.arena[idx]
	e.gen++
	e.used = true
	e.id = id
	e.inputs = make(map[int]source)
	e.dependents = make(map[Handle]map[int]EdgeKind)

	h := Handle{index: idx, gen: e.gen}
	t.byID[id] = h
	t.live++
	return h, nil
}

// RemoveNode deletes a node and every edge touching it. It returns the
// dropped downstream edges, so the caller knows exactly which input slots
// were vacated and can apply the unconnected-input fallback per slot.
func (t *Topology) RemoveNode(id string) ([]Edge, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.byID[id]
	if !ok {
		return nil, unknownNode(id)
	}
	e := &t.arena[h.index]

	// Detach from upstream sources.
	for _, src := range e.inputs {
		up := &t.arena[src.from.index]
		if m := up.dependents[h]; m != nil {
			delete(up.dependents, h)
		}
	}

	// Detach downstream and collect the vacated edges.
	var dropped []Edge
	for dh, slots := range e.dependents {
		down := &t.arena[dh.index]
		for slot, kind := range slots {
			delete(down.inputs, slot)
			dropped = append(dropped, Edge{From: id, To: down.id, Slot: slot, Kind: kind})
		}
	}
	sort.Slice(dropped, func(i, j int) bool {
		if dropped[i].To != dropped[j].To {
			return dropped[i].To < dropped[j].To
		}
		return dropped[i].Slot < dropped[j].Slot
	})

	e.used = false
	e.id = ""
	e.inputs = nil
	e.dependents = nil
	t.free = append(t.free, h.index)
	delete(t.byID, id)
	t.live--
	return dropped, nil
}

// Connect adds an edge feeding input slot `slot` of node `to` from the
// output of node `from`. A Forward edge is rejected with a CycleError when
// it would close a cycle in the forward subgraph; a Feedback edge is exempt
// from that check by definition.
func (t *Topology) Connect(from, to string, slot int, kind EdgeKind) error {
	if from == to && kind == Forward {
		return fmt.Errorf("%w: %s -> %s", ErrSelfEdge, from, to)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fh, ok := t.byID[from]
	if !ok {
		return unknownNode(from)
	}
	th, ok := t.byID[to]
	if !ok {
		return unknownNode(to)
	}

	toEntry := &t.arena[th.index]
	if _, taken := toEntry.inputs[slot]; taken {
		return fmt.Errorf("%w: %s slot %d", ErrSlotOccupied, to, slot)
	}

	if kind == Forward {
		// The new edge from -> to closes a cycle iff `from` is already
		// reachable from `to` along forward edges.
		if path := t.forwardPathLocked(th, fh); path != nil {
			return &CycleError{Involved: append(path, from)}
		}
	}

	toEntry.inputs[slot] = source{from: fh, kind: kind}
	fromEntry := &t.arena[fh.index]
	m := fromEntry.dependents[th]
	if m == nil {
		m = make(map[int]EdgeKind)
		fromEntry.dependents[th] = m
	}
	m[slot] = kind
	return nil
}

// Disconnect removes the edge feeding input slot `slot` of node `to`.
func (t *Topology) Disconnect(from, to string, slot int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fh, ok := t.byID[from]
	if !ok {
		return unknownNode(from)
	}
	th, ok := t.byID[to]
	if !ok {
		return unknownNode(to)
	}

	toEntry := &t.arena[th.index]
	src, ok := toEntry.inputs[slot]
	if !ok || src.from != fh {
		return fmt.Errorf("%w: %s -> %s slot %d", ErrEdgeNotFound, from, to, slot)
	}
	delete(toEntry.inputs, slot)

	fromEntry := &t.arena[fh.index]
	if m := fromEntry.dependents[th]; m != nil {
		delete(m, slot)
		if len(m) == 0 {
			delete(fromEntry.dependents, th)
		}
	}
	return nil
}

// forwardPathLocked returns the node IDs on a forward path from start to
// goal (inclusive), or nil when goal is unreachable. Caller holds the lock.
func (t *Topology) forwardPathLocked(start, goal Handle) []string {
	type frame struct {
		h    Handle
		path []string
	}
	seen := map[Handle]bool{start: true}
	stack := []frame{{h: start, path: []string{t.arena[start.index].id}}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.h == goal {
			return f.path
		}
		for dh, slots := range t.arena[f.h.index].dependents {
			if seen[dh] || !hasForward(slots) {
				continue
			}
			seen[dh] = true
			next := make([]string, len(f.path), len(f.path)+1)
			copy(next, f.path)
			stack = append(stack, frame{h: dh, path: append(next, t.arena[dh.index].id)})
		}
	}
	return nil
}

func hasForward(slots map[int]EdgeKind) bool {
	for _, k := range slots {
		if k == Forward {
			return true
		}
	}
	return false
}

func hasFeedback(slots map[int]EdgeKind) bool {
	for _, k := range slots {
		if k == Feedback {
			return true
		}
	}
	return false
}
