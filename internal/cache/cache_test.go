package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestGetMissThenHit(t *testing.T) {
	s := New()

	_, ok := s.Get("a")
	assert.False(t, ok)

	s.Put("a", cty.NumberIntVal(42), 1)
	e, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, cty.NumberIntVal(42), e.Value)
	assert.Equal(t, uint64(1), e.ValidSince)

	hits, misses, rate := s.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.InDelta(t, 0.5, rate, 1e-9)
}

func TestPeekDoesNotCount(t *testing.T) {
	s := New()
	s.Put("a", cty.True, 1)

	_, ok := s.Peek("a")
	require.True(t, ok)
	_, ok = s.Peek("missing")
	require.False(t, ok)

	hits, misses, _ := s.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestDelete(t *testing.T) {
	s := New()
	s.Put("a", cty.True, 1)
	s.Delete("a")
	_, ok := s.Peek("a")
	assert.False(t, ok)
}

func TestView(t *testing.T) {
	s := New()
	s.Put("a", cty.NumberIntVal(1), 1)
	s.Put("b", cty.NumberIntVal(2), 1)

	view := s.View()
	require.Len(t, view, 2)
	assert.Equal(t, cty.NumberIntVal(1), view["a"])

	// The view is a copy; mutating it leaves the store intact.
	view["a"] = cty.NumberIntVal(99)
	e, ok := s.Peek("a")
	require.True(t, ok)
	assert.Equal(t, cty.NumberIntVal(1), e.Value)
}

func TestEvictionLeastRecentlyEvaluated(t *testing.T) {
	s := NewWithCapacity(2)

	assert.Empty(t, s.Put("a", cty.NumberIntVal(1), 1))
	assert.Empty(t, s.Put("b", cty.NumberIntVal(2), 2))

	// Capacity exceeded: the entry with the oldest pass goes.
	evicted := s.Put("c", cty.NumberIntVal(3), 3)
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 2, s.Len())

	_, ok := s.Peek("a")
	assert.False(t, ok)
	_, ok = s.Peek("b")
	assert.True(t, ok)
	_, ok = s.Peek("c")
	assert.True(t, ok)
}

func TestEvictionNeverRemovesFreshPut(t *testing.T) {
	s := NewWithCapacity(1)
	s.Put("a", cty.NumberIntVal(1), 5)

	// The just-written entry survives even though its pass is older than
	// nothing else; the previous occupant goes.
	evicted := s.Put("b", cty.NumberIntVal(2), 4)
	assert.Equal(t, []string{"a"}, evicted)
	_, ok := s.Peek("b")
	assert.True(t, ok)
}
