package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tensorgen/internal/codegen"
	"github.com/roach88/tensorgen/internal/ir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id, graph string) Run {
	return Run{
		ID:        id,
		Graph:     graph,
		GraphHash: "hash-" + graph,
		Status:    StatusOK,
		Stats:     codegen.Stats{Nodes: 2, Uses: 3, Duplicates: 1, Moves: 2},
	}
}

func sampleTrace() []codegen.TraceEntry {
	return []codegen.TraceEntry{
		{Seq: 1, Position: 0, Node: "fc1", Value: "x", Decision: "duplicate"},
		{Seq: 2, Position: 1, Node: "fc2", Value: "x", Decision: "move"},
		{Seq: 3, Position: 2, Node: codegen.ReturnNode, Value: "y", Decision: "move"},
	}
}

func TestWriteRun_AllocatesSeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seq1, err := s.WriteRun(ctx, sampleRun("run-a", "MLP"), sampleTrace())
	require.NoError(t, err)
	seq2, err := s.WriteRun(ctx, sampleRun("run-b", "MLP"), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), seq1)
	assert.Equal(t, int64(2), seq2)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seq1, err := s.WriteRun(ctx, sampleRun("run-a", "MLP"), sampleTrace())
	require.NoError(t, err)
	seq2, err := s.WriteRun(ctx, sampleRun("run-a", "Other"), sampleTrace()[:1])
	require.NoError(t, err)
	assert.Equal(t, seq1, seq2)

	run, err := s.ReadRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "MLP", run.Graph, "second write must not overwrite")

	decisions, err := s.ReadDecisions(ctx, "run-a", "")
	require.NoError(t, err)
	assert.Len(t, decisions, 3)
}

func TestWriteRun_DefaultsVersions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, sampleRun("run-a", "MLP"), nil)
	require.NoError(t, err)

	run, err := s.ReadRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, ir.GeneratorVersion, run.GeneratorVersion)
	assert.Equal(t, ir.IRVersion, run.IRVersion)
}

func TestWriteRun_FailedRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := Run{
		ID:           "run-f",
		Graph:        "Broken",
		GraphHash:    "h",
		Status:       StatusFailed,
		ErrorCode:    "UNKNOWN_VARIABLE",
		ErrorMessage: "no variable y",
	}
	_, err := s.WriteRun(ctx, run, nil)
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-f")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "UNKNOWN_VARIABLE", got.ErrorCode)
	assert.Equal(t, codegen.Stats{}, got.Stats)
}

func TestWriteRun_RejectsInvalidStatus(t *testing.T) {
	s := openTestStore(t)

	run := sampleRun("run-x", "MLP")
	run.Status = "maybe"
	_, err := s.WriteRun(context.Background(), run, nil)
	assert.Error(t, err)
}

func TestWriteRun_RejectsInvalidDecisionAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	trace := sampleTrace()
	trace[1].Decision = "borrow"
	_, err := s.WriteRun(ctx, sampleRun("run-a", "MLP"), trace)
	require.Error(t, err)

	_, err = s.ReadRun(ctx, "run-a")
	assert.ErrorIs(t, err, ErrRunNotFound, "run row must roll back with its decisions")
}

func TestMarshalStats_Canonical(t *testing.T) {
	got, err := marshalStats(codegen.Stats{Nodes: 5, Uses: 8, Duplicates: 2, Moves: 6})
	require.NoError(t, err)
	assert.Equal(t, `{"duplicates":2,"moves":6,"nodes":5,"unused":0,"uses":8}`, got)
}
