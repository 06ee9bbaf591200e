package codegen

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/roach88/tensorgen/internal/ir"
	"github.com/roach88/tensorgen/internal/scope"
)

// ReturnNode names the trace entries produced by the function's tail expression.
const ReturnNode = "<return>"

const indent = "    "

// Options configures a generation run.
type Options struct {
	// FunctionName defaults to "forward".
	FunctionName string
	// Renderer defaults to RustRenderer.
	Renderer Renderer
	// IDs supplies the run ID; defaults to UUIDv7Generator.
	IDs RunIDGenerator
}

// TraceEntry records one resolved use.
type TraceEntry struct {
	Seq      int64  `json:"seq"`
	Position int    `json:"position"`
	Node     string `json:"node"`
	Value    string `json:"value"`
	Decision string `json:"decision"`
}

// Stats summarizes a generation run.
type Stats struct {
	Nodes      int `json:"nodes"`
	Uses       int `json:"uses"`
	Duplicates int `json:"duplicates"`
	Moves      int `json:"moves"`
	// Unused counts produced values no node or return consumes.
	Unused int `json:"unused"`
}

// Result is the output of a successful generation.
type Result struct {
	RunID     string       `json:"run_id"`
	Graph     string       `json:"graph"`
	GraphHash string       `json:"graph_hash"`
	Source    string       `json:"source"`
	Trace     []TraceEntry `json:"trace"`
	Stats     Stats        `json:"stats"`
}

// GenerateError wraps a ledger failure with the graph and node it occurred in.
type GenerateError struct {
	Graph string
	Node  string
	Err   error
}

func (e *GenerateError) Error() string {
	return fmt.Sprintf("graph %s: node %s: %v", e.Graph, e.Node, e.Err)
}

func (e *GenerateError) Unwrap() error {
	return e.Err
}

// Generate compiles one graph into source text.
func Generate(ctx context.Context, g *ir.Graph, opts Options) (*Result, error) {
	log := klog.FromContext(ctx).WithValues("graph", g.Name)

	if opts.FunctionName == "" {
		opts.FunctionName = "forward"
	}
	if opts.Renderer == nil {
		opts.Renderer = RustRenderer{}
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}

	hash, err := ir.GraphHash(g)
	if err != nil {
		return nil, fmt.Errorf("hashing graph %s: %w", g.Name, err)
	}

	s := scope.New()
	if err := build(s, g); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     opts.IDs.Generate(),
		Graph:     g.Name,
		GraphHash: hash,
		Stats:     Stats{Nodes: len(g.Nodes), Unused: countUnused(s, g)},
	}
	log.V(1).Info("build pass complete", "nodes", len(g.Nodes), "unused", result.Stats.Unused)

	if err := s.BeginEmit(); err != nil {
		return nil, &GenerateError{Graph: g.Name, Node: ReturnNode, Err: err}
	}

	e := &emitter{scope: s, renderer: opts.Renderer, result: result, log: log}

	var src strings.Builder
	fmt.Fprintf(&src, "// Code generated by tensorgen %s. DO NOT EDIT.\n", ir.GeneratorVersion)
	fmt.Fprintf(&src, "// graph: %s (%s)\n\n", g.Name, shortHash(hash))
	src.WriteString(opts.Renderer.Signature(opts.FunctionName, g))
	src.WriteString(" {\n")

	for i, node := range g.Nodes {
		args, err := e.resolveAll(node.Name, node.Inputs, ir.ConsumePosition(i))
		if err != nil {
			return nil, &GenerateError{Graph: g.Name, Node: node.Name, Err: err}
		}
		src.WriteString(indent + opts.Renderer.Statement(node, args) + "\n")
	}

	results, err := e.resolveAll(ReturnNode, g.Outputs, g.ReturnPosition())
	if err != nil {
		return nil, &GenerateError{Graph: g.Name, Node: ReturnNode, Err: err}
	}
	src.WriteString(indent + opts.Renderer.Return(results) + "\n")
	src.WriteString("}\n")

	if err := s.CheckExhausted(); err != nil {
		return nil, &GenerateError{Graph: g.Name, Node: ReturnNode, Err: err}
	}

	result.Source = src.String()
	log.V(1).Info("emit pass complete",
		"uses", result.Stats.Uses,
		"duplicates", result.Stats.Duplicates,
		"moves", result.Stats.Moves)

	return result, nil
}

// build performs the forward pre-scan. Positions follow package ir: inputs
// at 0, node i reads at i and writes at i+1, the return reads at len(nodes).
func build(s *scope.Scope, g *ir.Graph) error {
	for _, in := range g.Inputs {
		if err := s.RegisterProduced(in.Name, ir.InputPosition); err != nil {
			return &GenerateError{Graph: g.Name, Node: "<input>", Err: err}
		}
	}

	for i, node := range g.Nodes {
		for _, name := range node.Inputs {
			if err := s.RegisterFutureUse(name, ir.ConsumePosition(i)); err != nil {
				return &GenerateError{Graph: g.Name, Node: node.Name, Err: err}
			}
		}
		for _, out := range node.Outputs {
			if err := s.RegisterProduced(out.Name, ir.ProducePosition(i)); err != nil {
				return &GenerateError{Graph: g.Name, Node: node.Name, Err: err}
			}
		}
	}

	for _, name := range g.Outputs {
		if err := s.RegisterFutureUse(name, g.ReturnPosition()); err != nil {
			return &GenerateError{Graph: g.Name, Node: ReturnNode, Err: err}
		}
	}

	return nil
}

// countUnused counts produced generations that no consumer registered against.
func countUnused(s *scope.Scope, g *ir.Graph) int {
	unused := 0
	check := func(name string, position int) {
		for _, gen := range s.Generations(name) {
			if gen.Position == position && gen.PendingUses == 0 {
				unused++
			}
		}
	}

	seen := make(map[string]bool)
	for _, in := range g.Inputs {
		key := fmt.Sprintf("%s@%d", scope.Sanitize(in.Name), ir.InputPosition)
		if !seen[key] {
			seen[key] = true
			check(in.Name, ir.InputPosition)
		}
	}
	for i, node := range g.Nodes {
		for _, out := range node.Outputs {
			key := fmt.Sprintf("%s@%d", scope.Sanitize(out.Name), ir.ProducePosition(i))
			if !seen[key] {
				seen[key] = true
				check(out.Name, ir.ProducePosition(i))
			}
		}
	}
	return unused
}

type emitter struct {
	scope    *scope.Scope
	renderer Renderer
	result   *Result
	log      klog.Logger
	seq      int64
}

// resolveAll resolves each name in order and returns the rendered references.
func (e *emitter) resolveAll(node string, names []string, position int) ([]string, error) {
	refs := make([]string, 0, len(names))
	for _, name := range names {
		d, err := e.scope.ResolveUse(name, position)
		if err != nil {
			return nil, err
		}

		e.seq++
		e.result.Trace = append(e.result.Trace, TraceEntry{
			Seq:      e.seq,
			Position: position,
			Node:     node,
			Value:    d.Name,
			Decision: d.Kind.String(),
		})
		e.result.Stats.Uses++
		if d.Kind == scope.Move {
			e.result.Stats.Moves++
		} else {
			e.result.Stats.Duplicates++
		}
		e.log.V(2).Info("resolved use", "node", node, "value", d.Name, "position", position, "decision", d.Kind)

		refs = append(refs, e.renderer.Reference(d))
	}
	return refs, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return "sha256:" + h[:12]
	}
	return "sha256:" + h
}
