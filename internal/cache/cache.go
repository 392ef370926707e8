// Package cache stores the last committed value per node together with the
// pass counter it was computed at.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"
)

// Entry is one cached result. ValidSince is the pass counter at which the
// value was committed.
type Entry struct {
	Value      cty.Value
	ValidSince uint64
}

// Store is the per-engine result cache. Reads and writes for different node
// IDs may run concurrently; the scheduler guarantees a single node is
// written by at most one evaluation at a time by scheduling it once per
// pass.
//
// By default the store is unbounded: it holds one entry per live node, so
// graph size is the bound. An optional capacity enables
// least-recently-evaluated eviction for very large graphs; the engine must
// treat an evicted node as dirty, never serving stale data for it.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	capacity int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New returns an unbounded store.
func New() *Store {
	return NewWithCapacity(0)
}

// NewWithCapacity returns a store evicting down to capacity entries;
// capacity <= 0 means unbounded.
func NewWithCapacity(capacity int) *Store {
	return &Store{
		entries:  make(map[string]Entry),
		capacity: capacity,
	}
}

// Get returns the cached entry for a node and records a hit or miss.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return e, ok
}

// Peek returns the cached entry without touching the hit/miss counters.
// External probes (editor UI reading a value for display) go through here
// so they do not distort the per-pass hit rate.
func (s *Store) Peek(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Put stores a freshly computed value. When a capacity is configured and
// exceeded, the entries with the oldest ValidSince are evicted and their IDs
// returned so the caller can force them dirty.
func (s *Store) Put(id string, value cty.Value, pass uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = Entry{Value: value, ValidSince: pass}
	if s.capacity <= 0 || len(s.entries) <= s.capacity {
		return nil
	}

	var evicted []string
	for len(s.entries) > s.capacity {
		victim := ""
		oldest := uint64(0)
		for k, e := range s.entries {
			if k == id {
				continue
			}
			if victim == "" || e.ValidSince < oldest {
				victim, oldest = k, e.ValidSince
			}
		}
		if victim == "" {
			break
		}
		delete(s.entries, victim)
		evicted = append(evicted, victim)
	}
	return evicted
}

// Delete removes a node's entry, if present.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// View returns a copy of the current id -> value mapping. The feedback
// snapshot is committed from this view at the end of a pass.
func (s *Store) View() map[string]cty.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := make(map[string]cty.Value, len(s.entries))
	for id, e := range s.entries {
		view[id] = e.Value
	}
	return view
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns the cumulative hit and miss counts over Get lookups and the
// derived rate. Only Get feeds these counters: they measure the reuse path,
// not the full evaluation accounting, which the engine keeps itself per pass
// (an evaluation forced by a dirty mark never performs a lookup here).
func (s *Store) Stats() (hits, misses uint64, hitRate float64) {
	hits = s.hits.Load()
	misses = s.misses.Load()
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return hits, misses, hitRate
}
