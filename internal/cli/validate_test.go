package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidSpecs(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid (2 graph(s))")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), specsDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.ElementsMatch(t, []string{"MLP", "Split"}, resp.Data.Graphs)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateIdentifierCollision(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"collide.cue": collideSpec})

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E208: graph.Collide.values:")
}

func TestValidateDoesNotCheckDataflow(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"dangling.cue": danglingSpec})

	_, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	assert.NoError(t, err)
}

func TestValidateCompileErrorsJSON(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"bad.cue": `package test

graph: NoRank: {
	nodes: [{name: "n", op: "relu", outputs: [{name: "y"}]}]
	outputs: ["y"]
}
`})

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValueRank, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "graph.NoRank")
}

func TestValidateVerbose(t *testing.T) {
	_, errOut, err := execute(NewValidateCommand(&RootOptions{Format: "text", Verbose: true}), specsDir)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Validating graph: MLP")
}
