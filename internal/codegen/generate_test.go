package codegen

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tensorgen/internal/ir"
	"github.com/roach88/tensorgen/internal/scope"
)

func f(name string, rank int) ir.Value {
	return ir.Value{Name: name, Kind: ir.KindFloat, Rank: rank}
}

// mlpGraph redefines fc1/out in place and reuses both fc1/out and input
// after their first consumer.
func mlpGraph() *ir.Graph {
	return &ir.Graph{
		Name:   "MLP",
		Inputs: []ir.Value{f("input", 2)},
		Nodes: []ir.Node{
			{Name: "fc1", Op: "linear", Inputs: []string{"input"}, Outputs: []ir.Value{f("fc1/out", 2)}},
			{Name: "relu", Op: "relu", Inputs: []string{"fc1/out"}, Outputs: []ir.Value{f("fc1/out", 2)}},
			{Name: "fc2", Op: "linear", Inputs: []string{"fc1/out"}, Outputs: []ir.Value{f("fc2/out", 2)}},
			{Name: "add", Op: "add", Inputs: []string{"fc2/out", "fc1/out"}, Outputs: []ir.Value{f("sum", 2)}},
			{Name: "skip", Op: "add", Inputs: []string{"sum", "input"}, Outputs: []ir.Value{f("out", 2)}},
		},
		Outputs: []string{"out"},
	}
}

// splitGraph has a multi-output node, a node consuming one value twice, and
// a value returned twice.
func splitGraph() *ir.Graph {
	return &ir.Graph{
		Name:   "Split",
		Inputs: []ir.Value{f("x", 3)},
		Nodes: []ir.Node{
			{Name: "split", Op: "split", Inputs: []string{"x"}, Outputs: []ir.Value{f("a", 3), f("b", 3)}},
			{Name: "square", Op: "mul", Inputs: []string{"a", "a"}, Outputs: []ir.Value{f("sq", 3)}},
		},
		Outputs: []string{"sq", "b", "b"},
	}
}

func generate(t *testing.T, g *ir.Graph) *Result {
	t.Helper()
	result, err := Generate(context.Background(), g, Options{IDs: NewFixedGenerator("run-1")})
	require.NoError(t, err)
	return result
}

func TestGenerate_Golden(t *testing.T) {
	tests := []struct {
		name  string
		graph *ir.Graph
	}{
		{"mlp", mlpGraph()},
		{"split", splitGraph()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := generate(t, tt.graph)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, tt.name, []byte(result.Source))
		})
	}
}

func TestGenerate_Trace(t *testing.T) {
	result := generate(t, mlpGraph())

	want := []TraceEntry{
		{Seq: 1, Position: 0, Node: "fc1", Value: "input", Decision: "duplicate"},
		{Seq: 2, Position: 1, Node: "relu", Value: "fc1_out", Decision: "move"},
		{Seq: 3, Position: 2, Node: "fc2", Value: "fc1_out", Decision: "duplicate"},
		{Seq: 4, Position: 3, Node: "add", Value: "fc2_out", Decision: "move"},
		{Seq: 5, Position: 3, Node: "add", Value: "fc1_out", Decision: "move"},
		{Seq: 6, Position: 4, Node: "skip", Value: "sum", Decision: "move"},
		{Seq: 7, Position: 4, Node: "skip", Value: "input", Decision: "move"},
		{Seq: 8, Position: 5, Node: ReturnNode, Value: "out", Decision: "move"},
	}
	assert.Equal(t, want, result.Trace)

	assert.Equal(t, Stats{Nodes: 5, Uses: 8, Duplicates: 2, Moves: 6, Unused: 0}, result.Stats)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, "MLP", result.Graph)
	assert.Equal(t, ir.MustGraphHash(mlpGraph()), result.GraphHash)
}

func TestGenerate_StatsMatchTrace(t *testing.T) {
	for _, g := range []*ir.Graph{mlpGraph(), splitGraph()} {
		result := generate(t, g)

		moves := 0
		for _, e := range result.Trace {
			if e.Decision == "move" {
				moves++
			}
		}
		assert.Equal(t, result.Stats.Moves, moves, g.Name)
		assert.Equal(t, len(result.Trace), result.Stats.Uses, g.Name)
		assert.Equal(t, result.Stats.Uses, result.Stats.Moves+result.Stats.Duplicates, g.Name)
	}
}

func TestGenerate_UnusedOutputs(t *testing.T) {
	g := splitGraph()
	g.Outputs = []string{"sq"}

	result := generate(t, g)
	assert.Equal(t, 1, result.Stats.Unused, "b is produced but never consumed")
}

func TestGenerate_UnknownInput(t *testing.T) {
	g := mlpGraph()
	g.Nodes[2].Inputs = []string{"missing/value"}

	_, err := Generate(context.Background(), g, Options{IDs: NewFixedGenerator("run-1")})
	require.Error(t, err)
	assert.True(t, scope.IsUnknownVariable(err))

	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "MLP", genErr.Graph)
	assert.Equal(t, "fc2", genErr.Node)
	assert.Contains(t, err.Error(), "missing_value")
}

func TestGenerate_UseBeforeProduction(t *testing.T) {
	g := mlpGraph()
	// fc1 now reads sum, which is only produced by node 3.
	g.Nodes[0].Inputs = []string{"sum"}

	_, err := Generate(context.Background(), g, Options{IDs: NewFixedGenerator("run-1")})
	assert.True(t, scope.IsUnknownVariable(err))
}

func TestGenerate_UnknownOutput(t *testing.T) {
	g := mlpGraph()
	g.Outputs = []string{"nope"}

	_, err := Generate(context.Background(), g, Options{IDs: NewFixedGenerator("run-1")})
	require.Error(t, err)
	assert.True(t, scope.IsUnknownVariable(err))

	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, ReturnNode, genErr.Node)
}

func TestGenerate_InPlaceRedefinitionKeepsEarlierGeneration(t *testing.T) {
	g := &ir.Graph{
		Name:   "Acc",
		Inputs: []ir.Value{f("x", 1)},
		Nodes: []ir.Node{
			{Name: "double", Op: "add", Inputs: []string{"x", "x"}, Outputs: []ir.Value{f("x", 1)}},
			{Name: "square", Op: "mul", Inputs: []string{"x", "x"}, Outputs: []ir.Value{f("x", 1)}},
		},
		Outputs: []string{"x"},
	}

	result := generate(t, g)
	assert.Contains(t, result.Source, "let x = x.clone().add(x);")
	assert.Contains(t, result.Source, "let x = x.clone().mul(x);")
	assert.Equal(t, Stats{Nodes: 2, Uses: 5, Duplicates: 2, Moves: 3}, result.Stats)
}

func TestGenerate_DefaultsRunID(t *testing.T) {
	result, err := Generate(context.Background(), splitGraph(), Options{})
	require.NoError(t, err)
	assert.Len(t, result.RunID, 36)
}

func TestGenerate_CustomFunctionName(t *testing.T) {
	result, err := Generate(context.Background(), splitGraph(), Options{
		FunctionName: "infer",
		IDs:          NewFixedGenerator("run-1"),
	})
	require.NoError(t, err)
	assert.Contains(t, result.Source, "pub fn infer(&self, x: Tensor<B, 3>)")
}
