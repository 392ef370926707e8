// Package dirty computes the minimal set of nodes that must be re-evaluated
// after a batch of changes: the changed nodes themselves plus everything
// reachable from them over forward edges.
//
// The expansion is a pure function over the topology so it stays trivially
// testable and leaves all bookkeeping (dirty flags, pending change sets) to
// the scheduler.
package dirty

import (
	"fmt"

	"github.com/vk/opflow/internal/graph"
)

// Expand performs a forward breadth-first traversal from the changed nodes
// and returns the full dirty set.
//
// Nodes reachable only through a feedback edge are not included: a feedback
// reader consumes the previous pass's snapshot, so an upstream change cannot
// make it stale within the same pass. A changed node with no dependents is
// still in the result; dirtiness of a sink is never pruned.
//
// A visited check keeps diamond-shaped fan-in linear: each node is enqueued
// at most once no matter how many dirty paths lead to it.
func Expand(t *graph.Topology, changed []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(changed))
	queue := make([]string, 0, len(changed))

	for _, id := range changed {
		if !t.Contains(id) {
			return nil, fmt.Errorf("%w: %q", graph.ErrUnknownNode, id)
		}
		if _, seen := set[id]; seen {
			continue
		}
		set[id] = struct{}{}
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		deps, err := t.ForwardDependents(id)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if _, seen := set[dep]; seen {
				continue
			}
			set[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	return set, nil
}
