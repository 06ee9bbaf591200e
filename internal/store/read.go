package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/tensorgen/internal/codegen"
)

// ErrRunNotFound is returned by ReadRun when no run has the given ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, seq, graph, graph_hash, status, error_code, error_message, stats, generator_version, ir_version`

// ReadRun returns the run with the given ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadRuns returns all runs ordered by seq. If graph is non-empty only runs
// of that graph are returned.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ReadRuns(ctx context.Context, graph string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if graph != "" {
		query += ` WHERE graph = ?`
		args = append(args, graph)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the highest-seq run, optionally restricted to a graph.
func (s *Store) LatestRun(ctx context.Context, graph string) (Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if graph != "" {
		query += ` WHERE graph = ?`
		args = append(args, graph)
	}
	query += ` ORDER BY seq DESC LIMIT 1`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// ReadDecisions returns the decisions of a run in emission order. If value
// is non-empty only decisions about that (sanitized) value are returned.
//
// Returns an empty slice (not nil) if there are no decisions.
func (s *Store) ReadDecisions(ctx context.Context, runID, value string) ([]codegen.TraceEntry, error) {
	query := `SELECT seq, position, node, value, decision FROM decisions WHERE run_id = ?`
	args := []any{runID}
	if value != "" {
		query += ` AND value = ?`
		args = append(args, value)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	entries := []codegen.TraceEntry{}
	for rows.Next() {
		var e codegen.TraceEntry
		if err := rows.Scan(&e.Seq, &e.Position, &e.Node, &e.Value, &e.Decision); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var statsJSON string
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Graph,
		&run.GraphHash,
		&run.Status,
		&run.ErrorCode,
		&run.ErrorMessage,
		&statsJSON,
		&run.GeneratorVersion,
		&run.IRVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return Run{}, fmt.Errorf("unmarshal stats for run %s: %w", run.ID, err)
	}
	return run, nil
}
