package harness

import "github.com/roach88/tensorgen/internal/codegen"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool `json:"pass"`

	// RunID is the fixed run ID the scenario was generated under.
	RunID string `json:"run_id"`

	// Source is the generated code; empty if generation failed.
	Source string `json:"source,omitempty"`

	// Trace holds the decisions as read back from the trace store.
	Trace []codegen.TraceEntry `json:"trace"`

	Stats codegen.Stats `json:"stats"`

	// ErrorCode is the ledger or validation code generation failed with.
	ErrorCode string `json:"error_code,omitempty"`

	// ErrorMessage is the full failure text, if any.
	ErrorMessage string `json:"error_message,omitempty"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []codegen.TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Failed reports whether generation itself failed.
func (r *Result) Failed() bool {
	return r.ErrorCode != "" || r.ErrorMessage != ""
}
