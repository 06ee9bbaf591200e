package harness

import (
	"fmt"

	"github.com/roach88/tensorgen/internal/codegen"
	"github.com/roach88/tensorgen/internal/scope"
)

// EvaluateExpectations checks a result against the scenario's expect and
// expect_error clauses and returns one message per failure.
func EvaluateExpectations(result *Result, scenario *Scenario) []string {
	if scenario.ExpectError != nil {
		return evaluateExpectError(result, scenario.ExpectError)
	}

	if result.Failed() {
		return []string{fmt.Sprintf("generation failed: %s", result.ErrorMessage)}
	}

	return evaluateDecisions(result.Trace, scenario.Expect)
}

func evaluateExpectError(result *Result, want *ExpectError) []string {
	if !result.Failed() {
		return []string{fmt.Sprintf("expected error %s, but generation succeeded", want.Code)}
	}
	if result.ErrorCode != want.Code {
		return []string{fmt.Sprintf("expected error %s, got %s: %s", want.Code, result.ErrorCode, result.ErrorMessage)}
	}
	return nil
}

type useKey struct {
	position int
	value    string
}

// evaluateDecisions matches expectations to trace entries. Expectations on
// the same (position, value) consume that key's entries in trace order.
func evaluateDecisions(trace []codegen.TraceEntry, expect []Expectation) []string {
	uses := make(map[useKey][]codegen.TraceEntry)
	for _, e := range trace {
		k := useKey{position: e.Position, value: e.Value}
		uses[k] = append(uses[k], e)
	}

	var errs []string
	consumed := make(map[useKey]int)
	for i, exp := range expect {
		k := useKey{position: exp.Position, value: scope.Sanitize(exp.Value)}
		n := consumed[k]
		consumed[k]++

		entries := uses[k]
		if n >= len(entries) {
			if len(entries) == 0 {
				errs = append(errs, fmt.Sprintf("expect[%d]: no use of %s at position %d", i, k.value, exp.Position))
			} else {
				errs = append(errs, fmt.Sprintf("expect[%d]: %s is used %d time(s) at position %d, expected at least %d",
					i, k.value, len(entries), exp.Position, n+1))
			}
			continue
		}

		got := entries[n]
		if got.Decision != exp.Decision {
			errs = append(errs, fmt.Sprintf("expect[%d]: %s at position %d (node %s): expected %s, got %s",
				i, k.value, exp.Position, got.Node, exp.Decision, got.Decision))
		}
	}
	return errs
}
