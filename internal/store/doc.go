// Package store provides SQLite-backed storage for generation traces.
//
// Each generation run is recorded once:
//   - runs: one row per compiled graph, successful or failed
//   - decisions: the ordered duplicate/move decisions of a successful run
//
// # Critical Patterns
//
// Logical ordering:
//   - runs.seq is assigned from MAX(seq)+1 inside the write transaction
//   - decisions.seq is the emitter's logical counter
//   - All queries ORDER BY seq ASC; no wall-clock timestamps are stored
//
// Idempotency:
//   - Writing a run whose id already exists is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
