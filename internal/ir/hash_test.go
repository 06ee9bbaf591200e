package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *Graph {
	return &Graph{
		Name:   "Net",
		Inputs: []Value{{Name: "input", Kind: KindFloat, Rank: 4}},
		Nodes: []Node{
			{
				Name:    "conv1",
				Op:      "conv2d",
				Inputs:  []string{"input"},
				Outputs: []Value{{Name: "conv1/out:0", Kind: KindFloat, Rank: 4}},
				Attrs:   map[string]string{"stride": "1"},
			},
			{
				Name:    "relu1",
				Op:      "relu",
				Inputs:  []string{"conv1/out:0"},
				Outputs: []Value{{Name: "relu1_out", Kind: KindFloat, Rank: 4}},
			},
		},
		Outputs: []string{"relu1_out"},
	}
}

func TestGraphHash_Deterministic(t *testing.T) {
	h1, err := GraphHash(sampleGraph())
	require.NoError(t, err)
	h2, err := GraphHash(sampleGraph())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestGraphHash_SensitiveToStructure(t *testing.T) {
	base := MustGraphHash(sampleGraph())

	reordered := sampleGraph()
	reordered.Nodes[1].Inputs = []string{"input"}
	assert.NotEqual(t, base, MustGraphHash(reordered))

	renamed := sampleGraph()
	renamed.Name = "Other"
	assert.NotEqual(t, base, MustGraphHash(renamed))
}

func TestGraphHash_DomainSeparated(t *testing.T) {
	g := sampleGraph()
	canonical, err := MarshalCanonical(g.ToCanonical())
	require.NoError(t, err)

	assert.Equal(t, hashWithDomain(DomainGraph, canonical), MustGraphHash(g))
	assert.NotEqual(t, hashWithDomain("other/v1", canonical), MustGraphHash(g))
}
