package graph

// Validate checks the whole-graph invariant: the edge set with feedback
// edges removed must be a DAG. It uses depth-first search with the classic
// three node sets (permanent, temporary, unvisited) and reports the path of
// the first cycle found.
//
// Connect maintains this invariant incrementally, so Validate is a
// consistency check for callers assembling graphs in bulk (e.g. a patch
// loader), not something the scheduler runs per pass.
func (t *Topology) Validate() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	permanent := make(map[Handle]bool)
	temporary := make(map[Handle]bool)
	var path []string

	var visit func(h Handle) *CycleError
	visit = func(h Handle) *CycleError {
		if permanent[h] {
			return nil
		}
		e := &t.arena[h.index]
		if temporary[h] {
			return &CycleError{Involved: append(append([]string(nil), path...), e.id)}
		}

		temporary[h] = true
		path = append(path, e.id)

		for dh, slots := range e.dependents {
			if !hasForward(slots) {
				continue
			}
			if err := visit(dh); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		delete(temporary, h)
		permanent[h] = true
		return nil
	}

	for _, h := range t.byID {
		if !permanent[h] {
			if err := visit(h); err != nil {
				return err
			}
		}
	}
	return nil
}
