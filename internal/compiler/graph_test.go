package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tensorgen/internal/ir"
)

func compileGraphSource(t *testing.T, src, name string) (*ir.Graph, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileGraph(v.LookupPath(cue.ParsePath("graph." + name)))
}

func TestCompileGraphBasic(t *testing.T) {
	g, err := compileGraphSource(t, `
		graph: Net: {
			inputs: [{name: "input", kind: "float", rank: 4}]
			nodes: [
				{
					name: "conv1"
					op: "conv2d"
					inputs: ["input"]
					outputs: [{name: "conv1/out:0", rank: 4}]
					attrs: {stride: "2", padding: "same"}
				},
				{
					name: "argmax"
					op: "argmax"
					inputs: ["conv1/out:0"]
					outputs: [{name: "classes", kind: "int", rank: 1}]
				},
			]
			outputs: ["classes"]
		}
	`, "Net")
	require.NoError(t, err)

	assert.Equal(t, "Net", g.Name)
	require.Len(t, g.Inputs, 1)
	assert.Equal(t, ir.Value{Name: "input", Kind: ir.KindFloat, Rank: 4}, g.Inputs[0])

	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "conv2d", g.Nodes[0].Op)
	assert.Equal(t, []string{"input"}, g.Nodes[0].Inputs)
	assert.Equal(t, ir.KindFloat, g.Nodes[0].Outputs[0].Kind, "kind defaults to float")
	assert.Equal(t, map[string]string{"stride": "2", "padding": "same"}, g.Nodes[0].Attrs)
	assert.Equal(t, ir.KindInt, g.Nodes[1].Outputs[0].Kind)

	assert.Equal(t, []string{"classes"}, g.Outputs)
	assert.Empty(t, Validate(g))
}

func TestCompileGraphNoInputs(t *testing.T) {
	g, err := compileGraphSource(t, `
		graph: Const: {
			nodes: [{name: "zeros", op: "zeros", outputs: [{name: "z", rank: 2}]}]
			outputs: ["z"]
		}
	`, "Const")
	require.NoError(t, err)
	assert.Empty(t, g.Inputs)
	assert.Empty(t, g.Nodes[0].Inputs)
}

func TestCompileGraphMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "no nodes",
			src:   `graph: G: { outputs: ["x"] }`,
			field: "nodes",
		},
		{
			name:  "no outputs",
			src:   `graph: G: { nodes: [] }`,
			field: "outputs",
		},
		{
			name:  "node without op",
			src:   `graph: G: { nodes: [{name: "n", outputs: []}], outputs: [] }`,
			field: "nodes[0].op",
		},
		{
			name:  "node without outputs",
			src:   `graph: G: { nodes: [{name: "n", op: "relu"}], outputs: [] }`,
			field: "nodes[0].outputs",
		},
		{
			name:  "value without rank",
			src:   `graph: G: { nodes: [{name: "n", op: "relu", outputs: [{name: "x"}]}], outputs: [] }`,
			field: "nodes[0].outputs[0].rank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileGraphSource(t, tt.src, "G")
			require.Error(t, err)

			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestCompileGraphWrongType(t *testing.T) {
	_, err := compileGraphSource(t, `
		graph: G: {
			nodes: [{name: "n", op: "relu", outputs: [{name: "x", rank: "four"}]}]
			outputs: ["x"]
		}
	`, "G")
	assert.Error(t, err)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "nodes", Message: "nodes are required"}
	assert.Equal(t, "nodes: nodes are required", err.Error())
}
