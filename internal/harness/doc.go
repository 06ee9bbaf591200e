// Package harness runs YAML scenarios against the code generator.
//
// A scenario names CUE spec files, the graph to generate, and what the
// ownership ledger is expected to decide:
//
//	name: mlp-reuse
//	description: fc1/out is read twice; only the last read moves
//	specs: [mlp.cue]
//	graph: MLP
//	expect:
//	  - {position: 2, value: fc1/out, decision: duplicate}
//	  - {position: 3, value: fc1/out, decision: move}
//	golden: true
//
// Each run records its decisions in a fresh in-memory trace store and the
// assertions read them back from there, so a scenario exercises the same
// path as `tensorgen compile --db`.
//
// Scenarios that should fail name the expected error code instead:
//
//	expect_error: {code: UNKNOWN_VARIABLE}
//
// Codes are ledger codes (UNKNOWN_VARIABLE, UNRESOLVED_USE, ...) or
// validation codes (E201-E210).
package harness
