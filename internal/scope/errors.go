package scope

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeUnknownVariable indicates a reference to a name with no
	// generation visible at the requested position.
	ErrCodeUnknownVariable ErrorCode = "UNKNOWN_VARIABLE"

	// ErrCodeUseBeforeRegistration indicates a resolve against a generation
	// whose pending-use counter was already exhausted.
	ErrCodeUseBeforeRegistration ErrorCode = "USE_BEFORE_REGISTRATION"

	// ErrCodeWrongPhase indicates a build call during emission or the reverse.
	ErrCodeWrongPhase ErrorCode = "WRONG_PHASE"

	// ErrCodeOutOfOrder indicates a production registered below an
	// already-registered position.
	ErrCodeOutOfOrder ErrorCode = "OUT_OF_ORDER"

	// ErrCodeInvalidPosition indicates a negative node position.
	ErrCodeInvalidPosition ErrorCode = "INVALID_POSITION"

	// ErrCodeUnresolvedUse indicates registered uses that were never resolved.
	ErrCodeUnresolvedUse ErrorCode = "UNRESOLVED_USE"
)

// Error is returned by every Scope operation that detects an inconsistency
// between the caller's node list and the ledger. All codes are fatal to the
// current compilation unit.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Name is the sanitized value name involved.
	Name string

	// Position is the node position of the offending call.
	Position int

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail())
}

// Detail is the error text without the code prefix.
func (e *Error) Detail() string {
	if e.Name != "" {
		return fmt.Sprintf("%s (value=%s, position=%d)", e.Message, e.Name, e.Position)
	}
	return fmt.Sprintf("%s (position=%d)", e.Message, e.Position)
}

// NewUnknownVariableError creates an Error for a name without a visible generation.
func NewUnknownVariableError(name string, position int) *Error {
	return &Error{
		Code:     ErrCodeUnknownVariable,
		Name:     name,
		Position: position,
		Message:  "no variable with this name is produced at or before this position",
	}
}

// NewUseBeforeRegistrationError creates an Error for an exhausted generation.
func NewUseBeforeRegistrationError(name string, position int) *Error {
	return &Error{
		Code:     ErrCodeUseBeforeRegistration,
		Name:     name,
		Position: position,
		Message:  "use was never registered during the build phase",
	}
}

// NewWrongPhaseError creates an Error for an out-of-phase call.
func NewWrongPhaseError(op string, phase Phase, name string, position int) *Error {
	return &Error{
		Code:     ErrCodeWrongPhase,
		Name:     name,
		Position: position,
		Message:  fmt.Sprintf("%s is not allowed in the %s phase", op, phase),
	}
}

func codeOf(err error) (ErrorCode, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}

// IsUnknownVariable reports whether err is an unknown-variable error.
func IsUnknownVariable(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeUnknownVariable
}

// IsUseBeforeRegistration reports whether err is a use-before-registration error.
func IsUseBeforeRegistration(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeUseBeforeRegistration
}

// IsWrongPhase reports whether err is a wrong-phase error.
func IsWrongPhase(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeWrongPhase
}

// Code returns the ErrorCode carried by err, or "" if err is not a scope error.
func Code(err error) ErrorCode {
	code, _ := codeOf(err)
	return code
}
