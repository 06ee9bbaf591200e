// Package codegen generates forward-pass source from a graph.
//
// Generate drives a scope.Scope through its two phases:
//
//  1. Build: a forward pre-scan registers every produced value and every
//     consumption edge, using the positions defined in package ir.
//  2. Emit: nodes are walked again in order; each input reference is
//     resolved to a duplicate or a move and rendered by a Renderer.
//
// Every decision is appended to a trace with a logical sequence number so
// runs can be stored and compared. Any ledger error aborts the graph; other
// graphs are unaffected because each call uses a fresh Scope.
package codegen
