package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	specsDir     = filepath.Join("..", "..", "testdata", "specs")
	scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")
)

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeSpecs writes CUE sources into a fresh directory.
func writeSpecs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

const danglingSpec = `package test

graph: Dangling: {
	inputs: [{name: "x", rank: 1}]
	nodes: [{name: "act", op: "relu", inputs: ["ghost"], outputs: [{name: "y", rank: 1}]}]
	outputs: ["y"]
}
`

const collideSpec = `package test

graph: Collide: {
	inputs: [{name: "a.b", rank: 1}]
	nodes: [{name: "act", op: "relu", inputs: ["a/b"], outputs: [{name: "y", rank: 1}]}]
	outputs: ["y"]
}
`
