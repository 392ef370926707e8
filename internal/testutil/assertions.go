package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// AssertOutput checks that the named output on the given frame holds the
// expected numeric value. Frame indices are zero-based.
func AssertOutput(t *testing.T, result *HarnessResult, frame int, name string, want float64) {
	t.Helper()

	require.Less(t, frame, len(result.Frames), "frame %d was never run", frame)
	v, ok := result.Frames[frame][name]
	require.True(t, ok, "output %q has no value on frame %d", name, frame)
	require.Equal(t, cty.Number, v.Type(), "output %q is not a number", name)

	f, _ := v.AsBigFloat().Float64()
	require.InDelta(t, want, f, 1e-9, "output %q on frame %d", name, frame)
}
