package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tensorgen/internal/ir"
)

// CompileGraph parses a CUE value into a Graph.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`graph: Net: { ... }`)
//	g, err := CompileGraph(v.LookupPath(cue.ParsePath("graph.Net")))
//
// Only structure is checked here. Dataflow (consuming a value nobody
// produced) is reported by the ownership ledger during generation.
func CompileGraph(v cue.Value) (*ir.Graph, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	g := &ir.Graph{}

	// Graph name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		g.Name = labels[len(labels)-1].String()
	}

	var err error

	// Inputs are optional (a graph may start from constants)
	inputsVal := v.LookupPath(cue.ParsePath("inputs"))
	if inputsVal.Exists() {
		g.Inputs, err = parseValues(inputsVal, "inputs")
		if err != nil {
			return nil, err
		}
	}

	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, &CompileError{
			Field:   "nodes",
			Message: "nodes are required",
			Pos:     v.Pos(),
		}
	}
	g.Nodes, err = parseNodes(nodesVal)
	if err != nil {
		return nil, err
	}

	outputsVal := v.LookupPath(cue.ParsePath("outputs"))
	if !outputsVal.Exists() {
		return nil, &CompileError{
			Field:   "outputs",
			Message: "outputs are required",
			Pos:     v.Pos(),
		}
	}
	g.Outputs, err = parseStrings(outputsVal)
	if err != nil {
		return nil, err
	}

	return g, nil
}

// parseNodes parses the ordered node list.
func parseNodes(v cue.Value) ([]ir.Node, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []ir.Node
	for i := 0; iter.Next(); i++ {
		nodeVal := iter.Value()
		field := fmt.Sprintf("nodes[%d]", i)

		name, err := requiredString(nodeVal, "name", field)
		if err != nil {
			return nil, err
		}
		op, err := requiredString(nodeVal, "op", field)
		if err != nil {
			return nil, err
		}

		node := ir.Node{Name: name, Op: op}

		if inputsVal := nodeVal.LookupPath(cue.ParsePath("inputs")); inputsVal.Exists() {
			node.Inputs, err = parseStrings(inputsVal)
			if err != nil {
				return nil, err
			}
		}

		outputsVal := nodeVal.LookupPath(cue.ParsePath("outputs"))
		if !outputsVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".outputs",
				Message: fmt.Sprintf("node %q must declare its outputs", name),
				Pos:     nodeVal.Pos(),
			}
		}
		node.Outputs, err = parseValues(outputsVal, field+".outputs")
		if err != nil {
			return nil, err
		}

		if attrsVal := nodeVal.LookupPath(cue.ParsePath("attrs")); attrsVal.Exists() {
			node.Attrs, err = parseAttrs(attrsVal)
			if err != nil {
				return nil, err
			}
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

// parseValues parses a list of {name, kind, rank} structs.
// Kind defaults to float when omitted.
func parseValues(v cue.Value, field string) ([]ir.Value, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var values []ir.Value
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		elemField := fmt.Sprintf("%s[%d]", field, i)

		name, err := requiredString(elem, "name", elemField)
		if err != nil {
			return nil, err
		}

		value := ir.Value{Name: name, Kind: ir.KindFloat}

		if kindVal := elem.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
			kind, err := kindVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			value.Kind = ir.ValueKind(kind)
		}

		rankVal := elem.LookupPath(cue.ParsePath("rank"))
		if !rankVal.Exists() {
			return nil, &CompileError{
				Field:   elemField + ".rank",
				Message: fmt.Sprintf("value %q must declare its rank", name),
				Pos:     elem.Pos(),
			}
		}
		rank, err := rankVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		value.Rank = int(rank)

		values = append(values, value)
	}

	return values, nil
}

// parseStrings parses a list of strings.
func parseStrings(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseAttrs parses a flat struct of string attributes.
func parseAttrs(v cue.Value) (map[string]string, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	attrs := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "attrs." + iter.Label(),
				Message: "attribute values must be strings",
				Pos:     iter.Value().Pos(),
			}
		}
		attrs[iter.Label()] = s
	}
	return attrs, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
