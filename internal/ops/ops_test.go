package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/opflow/internal/engine"
)

func eval(t *testing.T, typ string, params map[string]cty.Value, inputs ...cty.Value) cty.Value {
	t.Helper()
	def, ok := Default().Lookup(typ)
	require.True(t, ok, "operator %q not registered", typ)
	cb, err := def.Build(params)
	require.NoError(t, err)
	v, err := cb(inputs, &engine.PassContext{})
	require.NoError(t, err)
	return v
}

func asFloat(t *testing.T, v cty.Value) float64 {
	t.Helper()
	require.Equal(t, cty.Number, v.Type())
	f, _ := v.AsBigFloat().Float64()
	return f
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	def := &Definition{
		Type:   "noop",
		Output: cty.Number,
		Build: func(map[string]cty.Value) (engine.Callback, error) {
			return func([]cty.Value, *engine.PassContext) (cty.Value, error) {
				return cty.Zero, nil
			}, nil
		},
	}
	require.NoError(t, r.Register(def))
	assert.Error(t, r.Register(def), "duplicate registration must fail")

	got, ok := r.Lookup("noop")
	require.True(t, ok)
	assert.Equal(t, def, got)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestDefaultRegistryTypes(t *testing.T) {
	types := Default().Types()
	for _, want := range []string{"value", "add", "mul", "negate", "scale", "offset", "time", "passindex", "counter"} {
		assert.Contains(t, types, want)
	}
}

func TestValueOp(t *testing.T) {
	v := eval(t, "value", map[string]cty.Value{"value": cty.NumberIntVal(5)})
	assert.InDelta(t, 5.0, asFloat(t, v), 1e-9)

	// Defaults to zero without a parameter.
	v = eval(t, "value", nil)
	assert.InDelta(t, 0.0, asFloat(t, v), 1e-9)
}

func TestValueOpRejectsNonNumber(t *testing.T) {
	def, ok := Default().Lookup("value")
	require.True(t, ok)
	_, err := def.Build(map[string]cty.Value{"value": cty.StringVal("nope")})
	assert.Error(t, err)
}

func TestArithmeticOps(t *testing.T) {
	one := cty.NumberIntVal(1)
	three := cty.NumberIntVal(3)

	assert.InDelta(t, 4.0, asFloat(t, eval(t, "add", nil, one, three)), 1e-9)
	assert.InDelta(t, 3.0, asFloat(t, eval(t, "mul", nil, one, three)), 1e-9)
	assert.InDelta(t, -3.0, asFloat(t, eval(t, "negate", nil, three)), 1e-9)

	// Unconnected inputs read as the operation's identity.
	null := cty.NullVal(cty.Number)
	assert.InDelta(t, 3.0, asFloat(t, eval(t, "add", nil, null, three)), 1e-9)
	assert.InDelta(t, 3.0, asFloat(t, eval(t, "mul", nil, null, three)), 1e-9)
}

func TestScaleAndOffset(t *testing.T) {
	five := cty.NumberIntVal(5)

	v := eval(t, "scale", map[string]cty.Value{"factor": cty.NumberIntVal(2)}, five)
	assert.InDelta(t, 10.0, asFloat(t, v), 1e-9)

	v = eval(t, "offset", map[string]cty.Value{"amount": cty.NumberIntVal(1)}, five)
	assert.InDelta(t, 6.0, asFloat(t, v), 1e-9)
}

func TestTimeAndPassIndexOps(t *testing.T) {
	def, ok := Default().Lookup("time")
	require.True(t, ok)
	cb, err := def.Build(nil)
	require.NoError(t, err)
	v, err := cb(nil, &engine.PassContext{Time: 1.5})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, asFloat(t, v), 1e-9)
	assert.True(t, def.PerFrame)

	def, ok = Default().Lookup("passindex")
	require.True(t, ok)
	cb, err = def.Build(nil)
	require.NoError(t, err)
	v, err = cb(nil, &engine.PassContext{Pass: 7})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, asFloat(t, v), 1e-9)
}

func TestCounterOp(t *testing.T) {
	// The first pass reads the feedback default and starts at the step.
	v := eval(t, "counter", map[string]cty.Value{"step": cty.NumberIntVal(2)}, cty.NullVal(cty.Number))
	assert.InDelta(t, 2.0, asFloat(t, v), 1e-9)

	v = eval(t, "counter", map[string]cty.Value{"step": cty.NumberIntVal(2)}, cty.NumberIntVal(6))
	assert.InDelta(t, 8.0, asFloat(t, v), 1e-9)
}
