// Package ir provides the graph intermediate representation for tensorgen.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Node order is evaluation order; positions are derived from it
//   - Value names are raw graph names; sanitation happens at the ledger
//   - All JSON tags use snake_case
//   - Graph identity is a content hash of canonical JSON, never a timestamp
package ir
