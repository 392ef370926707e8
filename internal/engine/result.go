package engine

import (
	"time"

	"github.com/google/uuid"
)

// PassStats is the accounting of one pass. An access is one scheduled node:
// a hit when its cached value was reused (or it stood in as an
// already-satisfied ancestor), a miss when its callback ran.
type PassStats struct {
	Pass        uint64
	PassID      uuid.UUID
	Evaluated   int
	CacheHits   int
	CacheMisses int
	Duration    time.Duration
}

// HitRate returns the fraction of accesses served from cache. A pass with
// no accesses needed no recomputation at all and reports 1.0.
func (s PassStats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 1.0
	}
	return float64(s.CacheHits) / float64(total)
}

// PassResult is what Evaluate returns to the host.
//
// Succeeded=false means the pass aborted (cycle, guardrail, cancellation)
// and the cache still holds the previous committed state; Reason carries the
// cause. A succeeded pass may still carry FaultedNodes: per-node callback
// failures and their propagated dependents, which keep their last good
// cached value and stay dirty for the next pass.
type PassResult struct {
	Succeeded    bool
	Reason       error
	FaultedNodes []NodeFault
	Stats        PassStats
}

// Faulted reports whether the given node ID is in FaultedNodes.
func (r PassResult) Faulted(id string) bool {
	for _, f := range r.FaultedNodes {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Statistics is the engine-lifetime view reported by GetStatistics.
type Statistics struct {
	TotalPasses      uint64
	TotalEvaluations uint64
	CacheHitRate     float64
	LastPassDuration time.Duration
}
