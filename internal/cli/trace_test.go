package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compiledDB records one run of each testdata graph and returns the store path.
func compiledDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "trace.db")
	for _, g := range []string{"MLP", "Split"} {
		_, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), specsDir, "--graph", g, "--db", db)
		require.NoError(t, err)
	}
	return db
}

func TestTraceLatestRun(t *testing.T) {
	db := compiledDB(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Graph: Split")
	assert.Contains(t, out, "Status: ok")
	assert.Contains(t, out, "=== Decisions ===")
	assert.Contains(t, out, "Moves:      4")
}

func TestTraceGraphAndValue(t *testing.T) {
	db := compiledDB(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", db, "--graph", "MLP", "--value", "fc1/out")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "MLP", resp.Data.Run.Graph)
	require.Len(t, resp.Data.Decisions, 3)
	for _, d := range resp.Data.Decisions {
		assert.Equal(t, "fc1_out", d.Value)
	}
	assert.Equal(t, TraceStats{Decisions: 3, Duplicates: 1, Moves: 2}, resp.Data.Stats)
}

func TestTraceByRunID(t *testing.T) {
	db := compiledDB(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db, "--graph", "MLP")
	require.NoError(t, err)
	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	out, _, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--run", resp.Data.Run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for run: "+resp.Data.Run.ID)
	assert.Contains(t, out, "<return> <- out")
}

func TestTraceList(t *testing.T) {
	db := compiledDB(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "[1]")
	assert.Contains(t, out, "MLP ok")
	assert.Contains(t, out, "Split ok")
}

func TestTraceUnknownRun(t *testing.T) {
	db := compiledDB(t)

	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: nope")
}

func TestTraceMissingDatabase(t *testing.T) {
	t.Setenv(DatabaseEnv, "")

	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trace store not found")
}
