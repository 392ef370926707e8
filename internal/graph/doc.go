// Package graph owns the structural half of the engine: the operator node
// set, the directed dependency edges between nodes, and the traversal
// primitives built on them (cycle detection, topological ordering,
// dependency queries).
//
// Nodes live in an arena table (dense slice plus free list) addressed by
// generation-checked handles, so a handle held across a RemoveNode can never
// silently alias a recycled entry. The public API is keyed by the
// caller-assigned string ID; handles are exposed only for cheap identity
// checks.
//
// Edges are typed: a Forward edge participates in scheduling and must keep
// the forward subgraph acyclic, a Feedback edge is the author's declaration
// that the destination reads the source's previous-pass value and is
// invisible to ordering. The distinction is an enum on the edge itself so
// traversal code cannot treat one as the other by accident.
package graph
