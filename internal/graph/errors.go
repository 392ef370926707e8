package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownNode is returned when an operation references a node ID that
	// is not present in the topology.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateNode is returned by AddNode when the ID is already taken.
	ErrDuplicateNode = errors.New("duplicate node id")
	// ErrSelfEdge is returned when a forward edge would connect a node to
	// itself. A node reading its own prior output declares the same edge
	// as feedback instead.
	ErrSelfEdge = errors.New("self-referential forward edge")
	// ErrSlotOccupied is returned when a connect targets an input slot that
	// already has a source.
	ErrSlotOccupied = errors.New("input slot already connected")
	// ErrEdgeNotFound is returned by Disconnect for a non-existent edge.
	ErrEdgeNotFound = errors.New("edge not found")
	// ErrCycle is the sentinel wrapped by CycleError.
	ErrCycle = errors.New("cycle detected")
)

// CycleError reports a cycle among forward edges. Involved lists the node
// IDs on the offending path, in traversal order.
type CycleError struct {
	Involved []string
}

func (e *CycleError) Error() string {
	if len(e.Involved) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Involved, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

func unknownNode(id string) error {
	return fmt.Errorf("%w: %q", ErrUnknownNode, id)
}
