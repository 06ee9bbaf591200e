// Package scope tracks value lifetimes for forward-pass code generation.
//
// A Scope is an ownership ledger. Each value name maps to an ordered list of
// generations, one per node position that (re-)produces the name. Every
// generation carries a count of pending future uses.
//
// PROTOCOL:
//
// Build phase (forward pre-scan over the node list):
//  1. RegisterProduced for every value a node produces
//  2. RegisterFutureUse once per consumption edge
//
// Emit phase (after BeginEmit, in program order):
//  3. ResolveUse once per consumption edge, which returns a Decision:
//     Duplicate while later consumers remain, Move for the last one.
//
// A use at position p resolves against the generation with the largest
// position <= p, so a later redefinition shadows earlier ones.
//
// Errors are returned as *Error and are fatal to the graph being compiled.
// A Scope is not safe for concurrent use; each graph gets a fresh one.
package scope
