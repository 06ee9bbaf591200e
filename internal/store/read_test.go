package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tensorgen/internal/codegen"
)

func TestReadRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestReadRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := sampleRun("run-a", "MLP")
	_, err := s.WriteRun(ctx, want, sampleTrace())
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, want.Graph, got.Graph)
	assert.Equal(t, want.GraphHash, got.GraphHash)
	assert.Equal(t, want.Stats, got.Stats)
}

func TestReadRuns_OrderAndFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, r := range []Run{
		sampleRun("zzz", "MLP"),
		sampleRun("aaa", "Split"),
		sampleRun("mmm", "MLP"),
	} {
		_, err := s.WriteRun(ctx, r, nil)
		require.NoError(t, err)
	}

	all, err := s.ReadRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"zzz", "aaa", "mmm"}, []string{all[0].ID, all[1].ID, all[2].ID}, "ordered by seq, not id")

	mlp, err := s.ReadRuns(ctx, "MLP")
	require.NoError(t, err)
	require.Len(t, mlp, 2)
	assert.Equal(t, "mmm", mlp[1].ID)
}

func TestReadRuns_Empty(t *testing.T) {
	s := openTestStore(t)

	runs, err := s.ReadRuns(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestLatestRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LatestRun(ctx, "")
	assert.ErrorIs(t, err, ErrRunNotFound)

	for _, r := range []Run{sampleRun("r1", "MLP"), sampleRun("r2", "Split"), sampleRun("r3", "MLP")} {
		_, err := s.WriteRun(ctx, r, nil)
		require.NoError(t, err)
	}

	latest, err := s.LatestRun(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "r3", latest.ID)

	latest, err = s.LatestRun(ctx, "Split")
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.ID)
}

func TestReadDecisions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, sampleRun("run-a", "MLP"), sampleTrace())
	require.NoError(t, err)

	all, err := s.ReadDecisions(ctx, "run-a", "")
	require.NoError(t, err)
	assert.Equal(t, sampleTrace(), all)

	onlyX, err := s.ReadDecisions(ctx, "run-a", "x")
	require.NoError(t, err)
	assert.Equal(t, []codegen.TraceEntry{sampleTrace()[0], sampleTrace()[1]}, onlyX)

	none, err := s.ReadDecisions(ctx, "other", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
