package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	g := New()

	h, err := g.AddNode("a")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())

	id, ok := g.IDOf(h)
	require.True(t, ok)
	assert.Equal(t, "a", id)

	_, err = g.AddNode("a")
	assert.ErrorIs(t, err, ErrDuplicateNode)

	_, err = g.AddNode("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Nodes())
}

func TestConnect(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "a", "b")

		require.NoError(t, g.Connect("a", "b", 0, Forward))

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		require.Len(t, deps, 1)
		assert.Equal(t, Input{Slot: 0, Source: "a", Kind: Forward}, deps[0])

		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "a", "b")

		err := g.Connect("dne", "a", 0, Forward)
		assert.ErrorIs(t, err, ErrUnknownNode)

		err = g.Connect("a", "dne", 0, Forward)
		assert.ErrorIs(t, err, ErrUnknownNode)

		err = g.Connect("a", "a", 0, Forward)
		assert.ErrorIs(t, err, ErrSelfEdge)

		require.NoError(t, g.Connect("a", "b", 0, Forward))
		err = g.Connect("a", "b", 0, Forward)
		assert.ErrorIs(t, err, ErrSlotOccupied)
	})

	t.Run("self feedback edge is allowed", func(t *testing.T) {
		g := New()
		mustAdd(t, g, "counter")

		require.NoError(t, g.Connect("counter", "counter", 0, Feedback))

		deps, err := g.Dependencies("counter")
		require.NoError(t, err)
		require.Len(t, deps, 1)
		assert.Equal(t, Feedback, deps[0].Kind)
	})
}

func TestConnectCycleRejection(t *testing.T) {
	// Diamond: a -> b, a -> c, b -> d, c -> d.
	g := newDiamond(t)

	t.Run("closing edge without feedback marker fails", func(t *testing.T) {
		err := g.Connect("d", "a", 0, Forward)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycle)

		var cErr *CycleError
		require.ErrorAs(t, err, &cErr)
		assert.Contains(t, cErr.Involved, "a")
		assert.Contains(t, cErr.Involved, "d")

		// The rejected edge must not have been recorded.
		deps, err := g.Dependencies("a")
		require.NoError(t, err)
		assert.Empty(t, deps)
	})

	t.Run("same edge as feedback succeeds", func(t *testing.T) {
		require.NoError(t, g.Connect("d", "a", 0, Feedback))
		require.NoError(t, g.Validate())

		order, err := g.TopologicalOrder(setOf("a", "b", "c", "d"))
		require.NoError(t, err)
		// The feedback edge is invisible to ordering: a still first.
		assert.Equal(t, "a", order[0].ID)
	})
}

func TestDisconnect(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", "b")
	require.NoError(t, g.Connect("a", "b", 0, Forward))

	require.NoError(t, g.Disconnect("a", "b", 0))

	deps, err := g.Dependencies("b")
	require.NoError(t, err)
	assert.Empty(t, deps)

	err = g.Disconnect("a", "b", 0)
	assert.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestRemoveNode(t *testing.T) {
	g := New()
	mustAdd(t, g, "src", "mid", "sink")
	require.NoError(t, g.Connect("src", "mid", 0, Forward))
	require.NoError(t, g.Connect("mid", "sink", 0, Forward))

	h, ok := g.Resolve("mid")
	require.True(t, ok)

	dropped, err := g.RemoveNode("mid")
	require.NoError(t, err)
	assert.Equal(t, []Edge{{From: "mid", To: "sink", Slot: 0, Kind: Forward}}, dropped)
	assert.Equal(t, 2, g.Len())

	// The handle is stale now.
	_, ok = g.IDOf(h)
	assert.False(t, ok)

	// All touching edges are gone.
	deps, err := g.Dependencies("sink")
	require.NoError(t, err)
	assert.Empty(t, deps)
	dependents, err := g.Dependents("src")
	require.NoError(t, err)
	assert.Empty(t, dependents)

	_, err = g.RemoveNode("mid")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestArenaReuse(t *testing.T) {
	g := New()
	h1, err := g.AddNode("first")
	require.NoError(t, err)

	_, err = g.RemoveNode("first")
	require.NoError(t, err)

	// The arena row is recycled with a bumped generation, so the old
	// handle cannot alias the new node.
	h2, err := g.AddNode("second")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	_, ok := g.IDOf(h1)
	assert.False(t, ok)
	id, ok := g.IDOf(h2)
	require.True(t, ok)
	assert.Equal(t, "second", id)
}

func TestDependenciesSlotOrder(t *testing.T) {
	g := New()
	mustAdd(t, g, "x", "y", "mix")
	require.NoError(t, g.Connect("y", "mix", 1, Forward))
	require.NoError(t, g.Connect("x", "mix", 0, Forward))

	deps, err := g.Dependencies("mix")
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, 0, deps[0].Slot)
	assert.Equal(t, "x", deps[0].Source)
	assert.Equal(t, 1, deps[1].Slot)
	assert.Equal(t, "y", deps[1].Source)
}

func TestForwardDependents(t *testing.T) {
	g := New()
	mustAdd(t, g, "src", "fwd", "fb")
	require.NoError(t, g.Connect("src", "fwd", 0, Forward))
	require.NoError(t, g.Connect("src", "fb", 0, Feedback))

	all, err := g.Dependents("src")
	require.NoError(t, err)
	assert.Equal(t, []string{"fb", "fwd"}, all)

	forward, err := g.ForwardDependents("src")
	require.NoError(t, err)
	assert.Equal(t, []string{"fwd"}, forward)

	feedback, err := g.FeedbackDependents("src")
	require.NoError(t, err)
	assert.Equal(t, []string{"fb"}, feedback)

	_, err = g.FeedbackDependents("dne")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestEdges(t *testing.T) {
	g := newDiamond(t)
	require.NoError(t, g.Connect("d", "a", 0, Feedback))

	edges := g.Edges()
	require.Len(t, edges, 5)
	assert.Equal(t, Edge{From: "d", To: "a", Slot: 0, Kind: Feedback}, edges[0])
}

func TestValidate(t *testing.T) {
	t.Run("empty graph", func(t *testing.T) {
		assert.NoError(t, New().Validate())
	})

	t.Run("diamond with feedback back edge", func(t *testing.T) {
		g := newDiamond(t)
		require.NoError(t, g.Connect("d", "a", 0, Feedback))
		assert.NoError(t, g.Validate())
	})
}

// newDiamond builds a -> b, a -> c, b -> d, c -> d.
func newDiamond(t *testing.T) *Topology {
	t.Helper()
	g := New()
	mustAdd(t, g, "a", "b", "c", "d")
	require.NoError(t, g.Connect("a", "b", 0, Forward))
	require.NoError(t, g.Connect("a", "c", 0, Forward))
	require.NoError(t, g.Connect("b", "d", 0, Forward))
	require.NoError(t, g.Connect("c", "d", 1, Forward))
	return g
}

func mustAdd(t *testing.T, g *Topology, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := g.AddNode(id)
		require.NoError(t, err)
	}
}

func setOf(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
