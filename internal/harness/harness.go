package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/roach88/tensorgen/internal/codegen"
	"github.com/roach88/tensorgen/internal/compiler"
	"github.com/roach88/tensorgen/internal/ir"
	"github.com/roach88/tensorgen/internal/scope"
	"github.com/roach88/tensorgen/internal/store"
)

// RunIDPrefix prefixes the fixed run ID of every scenario run.
const RunIDPrefix = "scenario/"

// Run executes a scenario and returns the result.
//
// A returned error means the scenario could not be executed at all (specs
// fail to load, the graph is missing). Generation failures and unmet
// expectations are reported in the Result.
//
// Execution flow:
// 1. Load the scenario's CUE files and compile the named graph
// 2. Validate the graph
// 3. Generate with a fixed run ID
// 4. Record the run in a fresh in-memory trace store and read it back
// 5. Evaluate expectations against the stored decisions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	log := klog.FromContext(ctx).WithValues("scenario", scenario.Name)

	g, err := loadGraph(scenario)
	if err != nil {
		return nil, err
	}

	hash, err := ir.GraphHash(g)
	if err != nil {
		return nil, fmt.Errorf("hashing graph %s: %w", g.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	result := NewResult()
	result.RunID = RunIDPrefix + scenario.Name

	run := store.Run{
		ID:        result.RunID,
		Graph:     g.Name,
		GraphHash: hash,
		Status:    store.StatusOK,
	}

	var trace []codegen.TraceEntry
	if verrs := compiler.Validate(g); len(verrs) > 0 {
		result.ErrorCode = verrs[0].Code
		result.ErrorMessage = joinValidationErrors(verrs)
	} else {
		gen, err := codegen.Generate(ctx, g, codegen.Options{
			IDs: codegen.NewFixedGenerator(result.RunID),
		})
		if err != nil {
			result.ErrorCode = string(scope.Code(err))
			result.ErrorMessage = err.Error()
		} else {
			result.Source = gen.Source
			result.Stats = gen.Stats
			run.Stats = gen.Stats
			trace = gen.Trace
		}
	}

	if result.Failed() {
		run.Status = store.StatusFailed
		run.ErrorCode = result.ErrorCode
		run.ErrorMessage = result.ErrorMessage
	}
	log.V(1).Info("scenario generated", "graph", g.Name, "status", run.Status, "code", run.ErrorCode)

	if _, err := st.WriteRun(ctx, run, trace); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	result.Trace, err = st.ReadDecisions(ctx, run.ID, "")
	if err != nil {
		return nil, fmt.Errorf("reading decisions: %w", err)
	}

	for _, msg := range EvaluateExpectations(result, scenario) {
		result.AddError(msg)
	}

	return result, nil
}

func loadGraph(scenario *Scenario) (*ir.Graph, error) {
	v, err := compiler.BuildFiles("", scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("loading specs: %w", err)
	}

	graphs, errs := compiler.CompileGraphs(v)
	if len(errs) > 0 {
		return nil, fmt.Errorf("compiling specs: %w", errors.Join(errs...))
	}

	g, ok := compiler.FindGraph(graphs, scenario.Graph)
	if !ok {
		return nil, fmt.Errorf("graph %q not found in %s", scenario.Graph, strings.Join(scenario.Specs, ", "))
	}
	return g, nil
}

func joinValidationErrors(errs []compiler.ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
