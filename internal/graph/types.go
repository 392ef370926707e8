package graph

import "sync"

// EdgeKind distinguishes scheduling edges from authored feedback edges.
type EdgeKind uint8

const (
	// Forward edges constrain evaluation order and must form a DAG.
	Forward EdgeKind = iota
	// Feedback edges read the source's previous-pass value and never
	// participate in ordering.
	Feedback
)

// String returns the lowercase name of the kind, for logs and errors.
func (k EdgeKind) String() string {
	if k == Feedback {
		return "feedback"
	}
	return "forward"
}

// Handle is a generation-checked reference into the node arena. The zero
// Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// Input describes one connected input slot of a node.
type Input struct {
	Slot   int
	Source string
	Kind   EdgeKind
}

// Edge is a fully resolved dependency reference, as returned by Edges.
type Edge struct {
	From string
	To   string
	Slot int
	Kind EdgeKind
}

// Topology is the mutable node-and-edge store. All methods are safe for
// concurrent use; structural writes take the write lock, queries the read
// lock.
type Topology struct {
	mu sync.RWMutex

	// arena is the dense node table. Entries are recycled through free,
	// bumping their generation on each reuse.
	arena []entry
	free  []uint32
	byID  map[string]Handle
	live  int
}

// entry is one arena row.
type entry struct {
	gen  uint32
	used bool
	id   string

	// inputs maps slot index -> connected source.
	inputs map[int]source
	// dependents maps a downstream node handle to the set of slot indexes
	// on that node fed by this one.
	dependents map[Handle]map[int]EdgeKind
}

type source struct {
	from Handle
	kind EdgeKind
}

// New returns an empty topology.
func New() *Topology {
	return &Topology{byID: make(map[string]Handle)}
}
