package codegen

import (
	"fmt"
	"strings"

	"github.com/roach88/tensorgen/internal/ir"
	"github.com/roach88/tensorgen/internal/scope"
)

// Renderer turns ledger decisions and nodes into target-language text.
// Generate owns ordering and indentation; a Renderer owns spelling.
type Renderer interface {
	// Reference renders a value reference: duplicating or moving.
	Reference(d scope.Decision) string
	// Statement renders one node given its already-rendered arguments.
	Statement(node ir.Node, args []string) string
	// Signature renders the function header, without the opening brace.
	Signature(fn string, g *ir.Graph) string
	// Return renders the tail expression from rendered output references.
	Return(results []string) string
}

// RustRenderer emits burn-style Rust: duplicates become name.clone(), the
// last use moves the binding.
type RustRenderer struct{}

var _ Renderer = RustRenderer{}

var (
	binaryMethods = map[string]string{
		"add":    "add",
		"sub":    "sub",
		"mul":    "mul",
		"div":    "div",
		"matmul": "matmul",
		"equal":  "equal",
	}
	activations = map[string]bool{
		"relu":        true,
		"gelu":        true,
		"sigmoid":     true,
		"tanh":        true,
		"softmax":     true,
		"log_softmax": true,
	}
)

func (RustRenderer) Reference(d scope.Decision) string {
	if d.Kind == scope.Duplicate {
		return d.Name + ".clone()"
	}
	return d.Name
}

func (RustRenderer) Statement(node ir.Node, args []string) string {
	return fmt.Sprintf("let %s = %s;", bindings(node.Outputs), rustCall(node, args))
}

func rustCall(node ir.Node, args []string) string {
	if method, ok := binaryMethods[node.Op]; ok && len(args) == 2 {
		return fmt.Sprintf("%s.%s(%s)", args[0], method, args[1])
	}
	if activations[node.Op] && len(args) == 1 {
		if dim, ok := node.Attrs["dim"]; ok {
			return fmt.Sprintf("burn::tensor::activation::%s(%s, %s)", node.Op, args[0], dim)
		}
		return fmt.Sprintf("burn::tensor::activation::%s(%s)", node.Op, args[0])
	}
	return fmt.Sprintf("self.%s.forward(%s)", scope.Sanitize(node.Name), strings.Join(args, ", "))
}

func bindings(outs []ir.Value) string {
	if len(outs) == 1 {
		return scope.Sanitize(outs[0].Name)
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = scope.Sanitize(out.Name)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

func (RustRenderer) Signature(fn string, g *ir.Graph) string {
	params := make([]string, len(g.Inputs))
	for i, in := range g.Inputs {
		params[i] = fmt.Sprintf("%s: %s", scope.Sanitize(in.Name), rustType(in))
	}

	results := make([]string, len(g.Outputs))
	for i, name := range g.Outputs {
		v, ok := g.LookupValue(name)
		if !ok {
			// Only reachable when the output matches a value after sanitation,
			// which Validate reports as a collision.
			results[i] = "_"
			continue
		}
		results[i] = rustType(v)
	}

	ret := strings.Join(results, ", ")
	if len(results) > 1 {
		ret = "(" + ret + ")"
	}

	all := append([]string{"&self"}, params...)
	return fmt.Sprintf("pub fn %s(%s) -> %s", fn, strings.Join(all, ", "), ret)
}

func rustType(v ir.Value) string {
	switch v.Kind {
	case ir.KindInt:
		return fmt.Sprintf("Tensor<B, %d, Int>", v.Rank)
	case ir.KindBool:
		return fmt.Sprintf("Tensor<B, %d, Bool>", v.Rank)
	default:
		return fmt.Sprintf("Tensor<B, %d>", v.Rank)
	}
}

func (RustRenderer) Return(results []string) string {
	if len(results) == 1 {
		return results[0]
	}
	return "(" + strings.Join(results, ", ") + ")"
}
