// Package hclgraph loads a declarative patch description — operators,
// connections, designated outputs — from HCL and instantiates it through
// the engine's public API. Project persistence proper belongs to the host;
// this is just how the demo host stands a graph up.
package hclgraph

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/opflow/internal/engine"
	"github.com/vk/opflow/internal/fsutil"
	"github.com/vk/opflow/internal/ops"
)

// patchFile is the HCL schema of a patch.
type patchFile struct {
	Operators []*operatorBlock `hcl:"operator,block"`
	Connects  []*connectBlock  `hcl:"connect,block"`
	Outputs   []*outputBlock   `hcl:"output,block"`
}

type operatorBlock struct {
	Type   string   `hcl:"type,label"`
	Name   string   `hcl:"name,label"`
	Params hcl.Body `hcl:",remain"`
}

type connectBlock struct {
	From     string `hcl:"from"`
	To       string `hcl:"to"`
	Slot     int    `hcl:"slot,optional"`
	Feedback bool   `hcl:"feedback,optional"`
}

type outputBlock struct {
	Name string `hcl:"name,label"`
}

// Operator is one declared operator instance.
type Operator struct {
	Type   string
	Name   string
	Params map[string]cty.Value
}

// Connection is one declared edge.
type Connection struct {
	From     string
	To       string
	Slot     int
	Feedback bool
}

// Patch is the decoded, format-agnostic patch description.
type Patch struct {
	Operators   []Operator
	Connections []Connection
	// Outputs names the designated sink nodes the host reads after each
	// pass.
	Outputs []string
}

// Load reads and parses a patch. A directory path loads every .hcl file
// under it, in lexical order, merged into a single patch.
func Load(path string) (*Patch, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	return Parse(src, path)
}

// LoadDir loads all .hcl files under root and merges them. Larger patches
// are commonly split into one file per subsystem; merge order follows the
// sorted file paths so the result is deterministic.
func LoadDir(root string) (*Patch, error) {
	paths, err := fsutil.FindFilesByExtension(root, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("scanning patch directory: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("patch directory %q contains no .hcl files", root)
	}

	merged := &Patch{}
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading patch: %w", err)
		}
		p, err := Parse(src, path)
		if err != nil {
			return nil, err
		}
		merged.Operators = append(merged.Operators, p.Operators...)
		merged.Connections = append(merged.Connections, p.Connections...)
		merged.Outputs = append(merged.Outputs, p.Outputs...)
	}
	return merged, nil
}

// Parse decodes patch source. The filename is used in diagnostics only.
func Parse(src []byte, filename string) (*Patch, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing patch: %s", diags.Error())
	}

	var pf patchFile
	if diags := gohcl.DecodeBody(file.Body, nil, &pf); diags.HasErrors() {
		return nil, fmt.Errorf("decoding patch: %s", diags.Error())
	}

	patch := &Patch{}
	for _, opb := range pf.Operators {
		params, err := decodeParams(opb.Params)
		if err != nil {
			return nil, fmt.Errorf("operator %q %q: %w", opb.Type, opb.Name, err)
		}
		patch.Operators = append(patch.Operators, Operator{
			Type:   opb.Type,
			Name:   opb.Name,
			Params: params,
		})
	}
	for _, cb := range pf.Connects {
		patch.Connections = append(patch.Connections, Connection{
			From:     cb.From,
			To:       cb.To,
			Slot:     cb.Slot,
			Feedback: cb.Feedback,
		})
	}
	for _, ob := range pf.Outputs {
		patch.Outputs = append(patch.Outputs, ob.Name)
	}
	return patch, nil
}

// decodeParams evaluates the operator block's attributes as constant
// values. Patch parameters are literals; there is no expression scope.
func decodeParams(body hcl.Body) (map[string]cty.Value, error) {
	if body == nil {
		return nil, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading parameters: %s", diags.Error())
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	params := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parameter %q: %s", name, diags.Error())
		}
		params[name] = v
	}
	return params, nil
}

// Apply instantiates the patch into the engine, resolving operator types
// against the registry. Structural errors from the engine (unknown nodes,
// type mismatches, cycles) are returned as-is so callers can test against
// the engine's sentinel errors.
func (p *Patch) Apply(eng *engine.Engine, reg *ops.Registry) error {
	for _, op := range p.Operators {
		def, ok := reg.Lookup(op.Type)
		if !ok {
			return fmt.Errorf("operator %q %q: unknown operator type", op.Type, op.Name)
		}
		cb, err := def.Build(op.Params)
		if err != nil {
			return fmt.Errorf("operator %q %q: %w", op.Type, op.Name, err)
		}
		if _, err := eng.AddNode(op.Name, def.Spec(), cb); err != nil {
			return err
		}
	}
	for _, c := range p.Connections {
		if err := eng.Connect(c.From, c.To, c.Slot, c.Feedback); err != nil {
			return err
		}
	}
	for _, out := range p.Outputs {
		if !eng.Topology().Contains(out) {
			return fmt.Errorf("output %q: unknown node", out)
		}
	}
	return nil
}
