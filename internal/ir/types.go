package ir

import "fmt"

// ValueKind is the element family of a tensor value.
type ValueKind string

const (
	KindFloat ValueKind = "float"
	KindInt   ValueKind = "int"
	KindBool  ValueKind = "bool"
)

// ValidKinds defines allowed value kinds.
var ValidKinds = map[ValueKind]bool{
	KindFloat: true,
	KindInt:   true,
	KindBool:  true,
}

// Value is a named, typed tensor value.
type Value struct {
	Name string    `json:"name"`
	Kind ValueKind `json:"kind"`
	Rank int       `json:"rank"`
}

// Node is one operation in the evaluation sequence.
type Node struct {
	Name    string            `json:"name"`
	Op      string            `json:"op"`
	Inputs  []string          `json:"inputs"`
	Outputs []Value           `json:"outputs"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// Graph is one compilation unit: a forward pass as an ordered node list.
type Graph struct {
	Name    string   `json:"name"`
	Inputs  []Value  `json:"inputs"`
	Nodes   []Node   `json:"nodes"`
	Outputs []string `json:"outputs"`
}

// InputPosition is the position at which graph inputs are produced.
const InputPosition = 0

// ConsumePosition returns the position at which node i reads its inputs.
func ConsumePosition(i int) int {
	return i
}

// ProducePosition returns the position at which node i's outputs appear.
// Producing one past the consume position lets a node redefine its own input.
func ProducePosition(i int) int {
	return i + 1
}

// ReturnPosition returns the position at which the graph outputs are consumed.
func (g *Graph) ReturnPosition() int {
	return len(g.Nodes)
}

// LookupValue returns the most recent declaration of name visible at the
// return statement, searching node outputs backwards and then graph inputs.
func (g *Graph) LookupValue(name string) (Value, bool) {
	for i := len(g.Nodes) - 1; i >= 0; i-- {
		for _, out := range g.Nodes[i].Outputs {
			if out.Name == name {
				return out, true
			}
		}
	}
	for _, in := range g.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Value{}, false
}

// String renders a value as name:kind[rank].
func (v Value) String() string {
	return fmt.Sprintf("%s:%s[%d]", v.Name, v.Kind, v.Rank)
}

// toCanonical converts the value into a canonical-JSON-ready map.
func (v Value) toCanonical() map[string]any {
	return map[string]any{
		"name": v.Name,
		"kind": string(v.Kind),
		"rank": v.Rank,
	}
}

// ToCanonical converts the graph into a map accepted by MarshalCanonical.
func (g *Graph) ToCanonical() map[string]any {
	inputs := make([]any, len(g.Inputs))
	for i, in := range g.Inputs {
		inputs[i] = in.toCanonical()
	}

	nodes := make([]any, len(g.Nodes))
	for i, n := range g.Nodes {
		ins := make([]any, len(n.Inputs))
		for j, name := range n.Inputs {
			ins[j] = name
		}
		outs := make([]any, len(n.Outputs))
		for j, out := range n.Outputs {
			outs[j] = out.toCanonical()
		}
		node := map[string]any{
			"name":    n.Name,
			"op":      n.Op,
			"inputs":  ins,
			"outputs": outs,
		}
		if len(n.Attrs) > 0 {
			attrs := make(map[string]any, len(n.Attrs))
			for k, v := range n.Attrs {
				attrs[k] = v
			}
			node["attrs"] = attrs
		}
		nodes[i] = node
	}

	outputs := make([]any, len(g.Outputs))
	for i, name := range g.Outputs {
		outputs[i] = name
	}

	return map[string]any{
		"name":    g.Name,
		"inputs":  inputs,
		"nodes":   nodes,
		"outputs": outputs,
	}
}
