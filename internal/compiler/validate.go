package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tensorgen/internal/ir"
	"github.com/roach88/tensorgen/internal/scope"
)

// Validation error codes (E200-E299)
const (
	ErrGraphNameEmpty     = "E201" // graph name is required
	ErrGraphNoNodes       = "E202" // at least one node required
	ErrGraphNoOutputs     = "E203" // at least one output required
	ErrInvalidValueKind   = "E204" // kind must be float, int or bool
	ErrInvalidRank        = "E205" // rank must be >= 1
	ErrEmptyName          = "E206" // value or node name is empty
	ErrEmptyOp            = "E207" // node op is empty
	ErrIdentifierCollides = "E208" // distinct names sanitize to one identifier
	ErrDuplicateNode      = "E209" // two nodes share an identifier
	ErrNodeNoOutputs      = "E210" // node produces nothing
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks graph structure and returns all errors found (does not
// fail-fast). It does not check dataflow; references to values that are
// never produced surface as UNKNOWN_VARIABLE during generation.
func Validate(g *ir.Graph) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(g.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "graph name is required",
			Code:    ErrGraphNameEmpty,
		})
	}
	if len(g.Nodes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "nodes",
			Message: "at least one node is required",
			Code:    ErrGraphNoNodes,
		})
	}
	if len(g.Outputs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "outputs",
			Message: "at least one output is required",
			Code:    ErrGraphNoOutputs,
		})
	}

	for i, in := range g.Inputs {
		errs = append(errs, validateValue(in, fmt.Sprintf("inputs[%d]", i))...)
	}

	nodeIdents := make(map[string]string)
	for i, node := range g.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)

		if node.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "node name is required",
				Code:    ErrEmptyName,
			})
		} else {
			ident := scope.Sanitize(node.Name)
			if prev, ok := nodeIdents[ident]; ok {
				errs = append(errs, ValidationError{
					Field:   field + ".name",
					Message: fmt.Sprintf("node %q has the same identifier %q as node %q", node.Name, ident, prev),
					Code:    ErrDuplicateNode,
				})
			} else {
				nodeIdents[ident] = node.Name
			}
		}

		if strings.TrimSpace(node.Op) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".op",
				Message: fmt.Sprintf("node %q must name an op", node.Name),
				Code:    ErrEmptyOp,
			})
		}
		if len(node.Outputs) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".outputs",
				Message: fmt.Sprintf("node %q must produce at least one value", node.Name),
				Code:    ErrNodeNoOutputs,
			})
		}
		for j, out := range node.Outputs {
			errs = append(errs, validateValue(out, fmt.Sprintf("%s.outputs[%d]", field, j))...)
		}
	}

	errs = append(errs, validateIdentifiers(g)...)

	return errs
}

func validateValue(v ir.Value, field string) []ValidationError {
	var errs []ValidationError

	if v.Name == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: "value name is required",
			Code:    ErrEmptyName,
		})
	}
	if !ir.ValidKinds[v.Kind] {
		errs = append(errs, ValidationError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("invalid kind %q for value %q, must be float, int or bool", v.Kind, v.Name),
			Code:    ErrInvalidValueKind,
		})
	}
	if v.Rank < 1 {
		errs = append(errs, ValidationError{
			Field:   field + ".rank",
			Message: fmt.Sprintf("rank of value %q must be at least 1, got %d", v.Name, v.Rank),
			Code:    ErrInvalidRank,
		})
	}

	return errs
}

// validateIdentifiers reports distinct raw value names that sanitize to the
// same identifier. The ledger keys by identifier, so such names would
// silently alias.
func validateIdentifiers(g *ir.Graph) []ValidationError {
	raws := make(map[string]map[string]bool)
	add := func(name string) {
		if name == "" {
			return
		}
		ident := scope.Sanitize(name)
		if raws[ident] == nil {
			raws[ident] = make(map[string]bool)
		}
		raws[ident][name] = true
	}

	for _, in := range g.Inputs {
		add(in.Name)
	}
	for _, node := range g.Nodes {
		for _, name := range node.Inputs {
			add(name)
		}
		for _, out := range node.Outputs {
			add(out.Name)
		}
	}
	for _, name := range g.Outputs {
		add(name)
	}

	idents := make([]string, 0, len(raws))
	for ident, names := range raws {
		if len(names) > 1 {
			idents = append(idents, ident)
		}
	}
	sort.Strings(idents)

	var errs []ValidationError
	for _, ident := range idents {
		names := make([]string, 0, len(raws[ident]))
		for name := range raws[ident] {
			names = append(names, name)
		}
		sort.Strings(names)
		errs = append(errs, ValidationError{
			Field:   "values",
			Message: fmt.Sprintf("names %q all map to identifier %q", names, ident),
			Code:    ErrIdentifierCollides,
		})
	}
	return errs
}
