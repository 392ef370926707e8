// Package ops holds the built-in operator definitions the demo host binds
// to engine nodes, and the registry the patch loader resolves operator
// types against.
//
// An operator definition declares its value types once; the engine checks
// connections against them, so an Eval implementation can trust the slot
// types it receives.
package ops

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/opflow/internal/engine"
)

// Definition describes one operator type.
type Definition struct {
	// Type is the registry key, e.g. "value" or "add".
	Type        string
	Description string

	// Inputs and Output declare the value types the engine checks at
	// connection time.
	Inputs []cty.Type
	Output cty.Type

	// PerFrame marks operators whose output varies with time or pass
	// index; the host re-marks them dirty every frame.
	PerFrame bool

	// Build returns the evaluation callback for one operator instance,
	// closed over its decoded parameters.
	Build func(params map[string]cty.Value) (engine.Callback, error)
}

// Spec returns the engine-side type declaration of this operator.
func (d *Definition) Spec() engine.ValueSpec {
	return engine.ValueSpec{Inputs: d.Inputs, Output: d.Output}
}

// Registry maps operator type names to their definitions.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition, rejecting duplicates and nil builders.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Type == "" {
		return fmt.Errorf("invalid operator definition")
	}
	if def.Build == nil {
		return fmt.Errorf("operator %q: nil builder", def.Type)
	}
	if _, ok := r.defs[def.Type]; ok {
		return fmt.Errorf("operator %q already registered", def.Type)
	}
	r.defs[def.Type] = def
	return nil
}

// Lookup returns the definition for a type name.
func (r *Registry) Lookup(typ string) (*Definition, bool) {
	def, ok := r.defs[typ]
	return def, ok
}

// Types returns the registered type names in lexicographic order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.defs))
	for t := range r.defs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Default returns a registry with all built-in operators registered.
func Default() *Registry {
	r := NewRegistry()
	for _, def := range builtins() {
		if err := r.Register(def); err != nil {
			// builtins are registered once from a static list; a clash
			// is a programming error.
			panic(err)
		}
	}
	return r
}
