// Package testutil provides shared helpers for integration tests that drive
// a full patch through the engine.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/opflow/internal/ctxlog"
	"github.com/vk/opflow/internal/engine"
	"github.com/vk/opflow/internal/hclgraph"
	"github.com/vk/opflow/internal/ops"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Engine *engine.Engine
	// Frames holds, per frame, the designated output values at the end of
	// that frame's pass.
	Frames []map[string]cty.Value
	// Passes holds the per-frame pass results in frame order.
	Passes []engine.PassResult
}

// Harness builds an engine from patch source and steps it frame by frame,
// re-marking animated operators dirty the way the host does.
type Harness struct {
	t        *testing.T
	ctx      context.Context
	patch    *hclgraph.Patch
	eng      *engine.Engine
	animated []string
	timeStep float64
	frame    int
	result   HarnessResult
}

// NewHarness parses and applies the patch source, failing the test on any
// structural error.
func NewHarness(t *testing.T, src string, opts ...engine.Option) *Harness {
	t.Helper()

	patch, err := hclgraph.Parse([]byte(src), t.Name()+".hcl")
	require.NoError(t, err)

	registry := ops.Default()
	eng := engine.New(opts...)
	require.NoError(t, patch.Apply(eng, registry))

	var animated []string
	for _, op := range patch.Operators {
		if def, ok := registry.Lookup(op.Type); ok && def.PerFrame {
			animated = append(animated, op.Name)
		}
	}

	logger := slog.New(slog.NewTextHandler(&SafeBuffer{}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return &Harness{
		t:        t,
		ctx:      ctxlog.WithLogger(context.Background(), logger),
		patch:    patch,
		eng:      eng,
		animated: animated,
		timeStep: 1.0 / 60.0,
	}
}

// Engine exposes the underlying engine for structural edits mid-run.
func (h *Harness) Engine() *engine.Engine { return h.eng }

// SetTimeStep overrides the default per-frame time advance.
func (h *Harness) SetTimeStep(step float64) { h.timeStep = step }

// Step runs one evaluation pass and records the designated outputs. The pass
// is required to succeed; node faults are allowed and surface in the
// recorded PassResult.
func (h *Harness) Step() engine.PassResult {
	h.t.Helper()

	if h.frame > 0 && len(h.animated) > 0 {
		require.NoError(h.t, h.eng.MarkDirty(h.animated...))
	}

	res := h.eng.Evaluate(h.ctx, engine.EvalOptions{Time: float64(h.frame) * h.timeStep})
	require.True(h.t, res.Succeeded, "pass %d did not complete: %v", res.Stats.Pass, res.Reason)

	outputs := make(map[string]cty.Value, len(h.patch.Outputs))
	for _, name := range h.patch.Outputs {
		if v, ok := h.eng.GetCachedValue(name); ok {
			outputs[name] = v
		}
	}
	h.result.Frames = append(h.result.Frames, outputs)
	h.result.Passes = append(h.result.Passes, res)
	h.frame++
	return res
}

// Run steps through the given number of frames and returns the accumulated
// result.
func (h *Harness) Run(frames int) *HarnessResult {
	h.t.Helper()
	for i := 0; i < frames; i++ {
		h.Step()
	}
	h.result.Engine = h.eng
	return &h.result
}
