package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/tensorgen/internal/ir"
)

// GraphsField is the top-level CUE field holding graph definitions.
const GraphsField = "graph"

// BuildDir loads the CUE package in dir into a single value.
func BuildDir(dir string) (cue.Value, error) {
	return build(&load.Config{Dir: dir}, ".")
}

// BuildFiles loads the given CUE files as one instance. Relative paths are
// resolved against dir.
func BuildFiles(dir string, files ...string) (cue.Value, error) {
	if len(files) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE files given")
	}
	return build(&load.Config{Dir: dir}, files...)
}

func build(cfg *load.Config, args ...string) (cue.Value, error) {
	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded")
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}
	// Err only reports a failing root; conflicts in nested fields show up here.
	if err := value.Validate(); err != nil {
		return cue.Value{}, fmt.Errorf("validating CUE value: %w", formatCUEError(err))
	}
	return value, nil
}

// GraphError attributes a compile failure to the graph it occurred in.
type GraphError struct {
	Graph string
	Err   error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("%s.%s: %v", GraphsField, e.Graph, e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// CompileGraphs compiles every graph under the top-level graph field, in
// declaration order. It keeps going after a failure and returns every error;
// a value without a graph field yields no graphs and no errors.
func CompileGraphs(v cue.Value) ([]*ir.Graph, []error) {
	graphsVal := v.LookupPath(cue.ParsePath(GraphsField))
	if !graphsVal.Exists() {
		return nil, nil
	}

	iter, err := graphsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var graphs []*ir.Graph
	var errs []error
	for iter.Next() {
		g, err := CompileGraph(iter.Value())
		if err != nil {
			errs = append(errs, &GraphError{Graph: iter.Label(), Err: err})
			continue
		}
		graphs = append(graphs, g)
	}
	return graphs, errs
}

// FindGraph returns the graph with the given name.
func FindGraph(graphs []*ir.Graph, name string) (*ir.Graph, bool) {
	for _, g := range graphs {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}
