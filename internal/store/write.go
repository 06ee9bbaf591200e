package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tensorgen/internal/codegen"
	"github.com/roach88/tensorgen/internal/ir"
)

// WriteRun records a run and its decisions in a single transaction and
// returns the run's logical sequence number.
//
// The run's Seq field is ignored; the next seq is allocated from MAX(seq)+1
// inside the transaction. If a run with the same ID already exists nothing
// is written and its existing seq is returned.
func (s *Store) WriteRun(ctx context.Context, run Run, trace []codegen.TraceEntry) (int64, error) {
	statsJSON, err := marshalStats(run.Stats)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}
	if run.GeneratorVersion == "" {
		run.GeneratorVersion = ir.GeneratorVersion
	}
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("write run: lookup: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write run: allocate seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, graph, graph_hash, status, error_code, error_message, stats, generator_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.Graph,
		run.GraphHash,
		run.Status,
		run.ErrorCode,
		run.ErrorMessage,
		statsJSON,
		run.GeneratorVersion,
		run.IRVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}

	if err := writeDecisions(ctx, tx, run.ID, trace); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run: commit: %w", err)
	}
	return seq, nil
}

// writeDecisions inserts a run's decisions inside tx. Entries whose seq is
// already recorded for the run are skipped.
func writeDecisions(ctx context.Context, tx *sql.Tx, runID string, trace []codegen.TraceEntry) error {
	if len(trace) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO decisions (run_id, seq, position, node, value, decision)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write decisions: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range trace {
		if _, err := stmt.ExecContext(ctx, runID, e.Seq, e.Position, e.Node, e.Value, e.Decision); err != nil {
			return fmt.Errorf("write decision %d: %w", e.Seq, err)
		}
	}
	return nil
}

// marshalStats serializes stats as canonical JSON so identical runs store
// identical bytes.
func marshalStats(stats codegen.Stats) (string, error) {
	data, err := ir.MarshalCanonical(map[string]any{
		"nodes":      stats.Nodes,
		"uses":       stats.Uses,
		"duplicates": stats.Duplicates,
		"moves":      stats.Moves,
		"unused":     stats.Unused,
	})
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	return string(data), nil
}
