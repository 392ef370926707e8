package ops

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/opflow/internal/engine"
)

// builtins returns the static list of built-in operator definitions.
func builtins() []*Definition {
	return []*Definition{
		valueOp(),
		addOp(),
		mulOp(),
		negateOp(),
		scaleOp(),
		offsetOp(),
		timeOp(),
		passIndexOp(),
		counterOp(),
	}
}

// valueOp emits a constant number, set by the "value" parameter.
func valueOp() *Definition {
	return &Definition{
		Type:        "value",
		Description: "Emits a constant number.",
		Output:      cty.Number,
		Build: func(params map[string]cty.Value) (engine.Callback, error) {
			v, err := numberParam(params, "value", cty.Zero)
			if err != nil {
				return nil, err
			}
			return func(_ []cty.Value, _ *engine.PassContext) (cty.Value, error) {
				return v, nil
			}, nil
		},
	}
}

func addOp() *Definition {
	return &Definition{
		Type:        "add",
		Description: "Sums its two inputs. An unconnected input reads as 0.",
		Inputs:      []cty.Type{cty.Number, cty.Number},
		Output:      cty.Number,
		Build: func(map[string]cty.Value) (engine.Callback, error) {
			return func(inputs []cty.Value, _ *engine.PassContext) (cty.Value, error) {
				return cty.NumberFloatVal(numOr(inputs, 0, 0) + numOr(inputs, 1, 0)), nil
			}, nil
		},
	}
}

func mulOp() *Definition {
	return &Definition{
		Type:        "mul",
		Description: "Multiplies its two inputs. An unconnected input reads as 1.",
		Inputs:      []cty.Type{cty.Number, cty.Number},
		Output:      cty.Number,
		Build: func(map[string]cty.Value) (engine.Callback, error) {
			return func(inputs []cty.Value, _ *engine.PassContext) (cty.Value, error) {
				return cty.NumberFloatVal(numOr(inputs, 0, 1) * numOr(inputs, 1, 1)), nil
			}, nil
		},
	}
}

func negateOp() *Definition {
	return &Definition{
		Type:        "negate",
		Description: "Negates its input.",
		Inputs:      []cty.Type{cty.Number},
		Output:      cty.Number,
		Build: func(map[string]cty.Value) (engine.Callback, error) {
			return func(inputs []cty.Value, _ *engine.PassContext) (cty.Value, error) {
				return cty.NumberFloatVal(-numOr(inputs, 0, 0)), nil
			}, nil
		},
	}
}

// scaleOp multiplies its input by the "factor" parameter.
func scaleOp() *Definition {
	return &Definition{
		Type:        "scale",
		Description: "Multiplies its input by a constant factor.",
		Inputs:      []cty.Type{cty.Number},
		Output:      cty.Number,
		Build: func(params map[string]cty.Value) (engine.Callback, error) {
			factor, err := numberParam(params, "factor", cty.NumberIntVal(1))
			if err != nil {
				return nil, err
			}
			f, _ := factor.AsBigFloat().Float64()
			return func(inputs []cty.Value, _ *engine.PassContext) (cty.Value, error) {
				return cty.NumberFloatVal(numOr(inputs, 0, 0) * f), nil
			}, nil
		},
	}
}

// offsetOp adds the "amount" parameter to its input.
func offsetOp() *Definition {
	return &Definition{
		Type:        "offset",
		Description: "Adds a constant amount to its input.",
		Inputs:      []cty.Type{cty.Number},
		Output:      cty.Number,
		Build: func(params map[string]cty.Value) (engine.Callback, error) {
			amount, err := numberParam(params, "amount", cty.Zero)
			if err != nil {
				return nil, err
			}
			a, _ := amount.AsBigFloat().Float64()
			return func(inputs []cty.Value, _ *engine.PassContext) (cty.Value, error) {
				return cty.NumberFloatVal(numOr(inputs, 0, 0) + a), nil
			}, nil
		},
	}
}

func timeOp() *Definition {
	return &Definition{
		Type:        "time",
		Description: "Emits the logical frame time in seconds.",
		Output:      cty.Number,
		PerFrame:    true,
		Build: func(map[string]cty.Value) (engine.Callback, error) {
			return func(_ []cty.Value, pctx *engine.PassContext) (cty.Value, error) {
				return cty.NumberFloatVal(pctx.Time), nil
			}, nil
		},
	}
}

func passIndexOp() *Definition {
	return &Definition{
		Type:        "passindex",
		Description: "Emits the current pass counter.",
		Output:      cty.Number,
		PerFrame:    true,
		Build: func(map[string]cty.Value) (engine.Callback, error) {
			return func(_ []cty.Value, pctx *engine.PassContext) (cty.Value, error) {
				return cty.NumberUIntVal(pctx.Pass), nil
			}, nil
		},
	}
}

// counterOp accumulates across passes: wired with a feedback edge from its
// own output (or another node), it adds "step" to the previous-pass value.
// The first pass reads the feedback default (null), so the count starts at
// the step.
func counterOp() *Definition {
	return &Definition{
		Type:        "counter",
		Description: "Adds a step to its previous-pass input.",
		Inputs:      []cty.Type{cty.Number},
		Output:      cty.Number,
		PerFrame:    true,
		Build: func(params map[string]cty.Value) (engine.Callback, error) {
			step, err := numberParam(params, "step", cty.NumberIntVal(1))
			if err != nil {
				return nil, err
			}
			s, _ := step.AsBigFloat().Float64()
			return func(inputs []cty.Value, _ *engine.PassContext) (cty.Value, error) {
				return cty.NumberFloatVal(numOr(inputs, 0, 0) + s), nil
			}, nil
		},
	}
}

// numOr reads input slot i as a float64, substituting def for an
// unconnected (null) or missing slot.
func numOr(inputs []cty.Value, i int, def float64) float64 {
	if i >= len(inputs) {
		return def
	}
	v := inputs[i]
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return def
	}
	f, _ := v.AsBigFloat().Float64()
	return f
}

// numberParam fetches a number parameter, applying a default when absent.
func numberParam(params map[string]cty.Value, name string, def cty.Value) (cty.Value, error) {
	v, ok := params[name]
	if !ok || v.IsNull() {
		return def, nil
	}
	if v.Type() != cty.Number {
		return cty.NilVal, fmt.Errorf("parameter %q: expected number, got %s", name, v.Type().FriendlyName())
	}
	return v, nil
}
