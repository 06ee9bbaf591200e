package scope

import (
	"fmt"
	"sort"
)

// Phase is the protocol phase a Scope is in.
type Phase int

const (
	// PhaseBuilding accepts RegisterProduced and RegisterFutureUse.
	PhaseBuilding Phase = iota
	// PhaseEmitting accepts ResolveUse.
	PhaseEmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseBuilding:
		return "building"
	case PhaseEmitting:
		return "emitting"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Generation is one producer event for a value name.
type Generation struct {
	Position    int `json:"position"`
	PendingUses int `json:"pending_uses"`
}

// Kind is the reference form chosen for a use.
type Kind int

const (
	// Duplicate means later consumers still need the value.
	Duplicate Kind = iota
	// Move means this is the last consumer.
	Move
)

func (k Kind) String() string {
	switch k {
	case Duplicate:
		return "duplicate"
	case Move:
		return "move"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Decision is the result of resolving one use.
type Decision struct {
	Kind Kind
	// Name is the sanitized identifier to reference.
	Name string
}

// Outstanding describes a generation whose registered uses were not all resolved.
type Outstanding struct {
	Name       string
	Generation Generation
}

// Scope is the ownership ledger for one compilation unit.
type Scope struct {
	variables map[string][]Generation
	phase     Phase
	last      int
}

// New returns an empty Scope in the building phase.
func New() *Scope {
	return &Scope{
		variables: make(map[string][]Generation),
		last:      -1,
	}
}

// Phase returns the current protocol phase.
func (s *Scope) Phase() Phase {
	return s.phase
}

// RegisterProduced declares that the node at position produces name.
// Registering an existing (name, position) pair is a no-op.
func (s *Scope) RegisterProduced(name string, position int) error {
	ident := Sanitize(name)
	if s.phase != PhaseBuilding {
		return NewWrongPhaseError("RegisterProduced", s.phase, ident, position)
	}
	if position < 0 {
		return &Error{Code: ErrCodeInvalidPosition, Name: ident, Position: position, Message: "position must be non-negative"}
	}

	gens := s.variables[ident]
	for _, g := range gens {
		if g.Position == position {
			return nil
		}
	}
	if position < s.last {
		return &Error{
			Code:     ErrCodeOutOfOrder,
			Name:     ident,
			Position: position,
			Message:  fmt.Sprintf("production registered after position %d", s.last),
		}
	}

	s.variables[ident] = append(gens, Generation{Position: position})
	s.last = position
	return nil
}

// RegisterFutureUse records that the node at position will consume name.
// Must be called once per consumption edge, before BeginEmit.
func (s *Scope) RegisterFutureUse(name string, position int) error {
	ident := Sanitize(name)
	if s.phase != PhaseBuilding {
		return NewWrongPhaseError("RegisterFutureUse", s.phase, ident, position)
	}

	g := s.visible(ident, position)
	if g == nil {
		return NewUnknownVariableError(ident, position)
	}
	g.PendingUses++
	return nil
}

// BeginEmit closes the build phase. It may be called only once.
func (s *Scope) BeginEmit() error {
	if s.phase != PhaseBuilding {
		return NewWrongPhaseError("BeginEmit", s.phase, "", s.last)
	}
	s.phase = PhaseEmitting
	return nil
}

// ResolveUse consumes one registered use of name at position and reports
// whether the reference must duplicate the value or may move it.
func (s *Scope) ResolveUse(name string, position int) (Decision, error) {
	ident := Sanitize(name)
	if s.phase != PhaseEmitting {
		return Decision{}, NewWrongPhaseError("ResolveUse", s.phase, ident, position)
	}

	g := s.visible(ident, position)
	if g == nil {
		return Decision{}, NewUnknownVariableError(ident, position)
	}
	if g.PendingUses == 0 {
		return Decision{}, NewUseBeforeRegistrationError(ident, position)
	}

	g.PendingUses--
	if g.PendingUses > 0 {
		return Decision{Kind: Duplicate, Name: ident}, nil
	}
	return Decision{Kind: Move, Name: ident}, nil
}

// visible returns the generation with the largest position <= position.
// Generations per name are few, so a reverse linear scan is enough.
func (s *Scope) visible(ident string, position int) *Generation {
	gens := s.variables[ident]
	for i := len(gens) - 1; i >= 0; i-- {
		if gens[i].Position <= position {
			return &gens[i]
		}
	}
	return nil
}

// Generations returns a copy of the generation list for name.
func (s *Scope) Generations(name string) []Generation {
	gens := s.variables[Sanitize(name)]
	if gens == nil {
		return nil
	}
	out := make([]Generation, len(gens))
	copy(out, gens)
	return out
}

// Outstanding lists generations that still have pending uses, ordered by
// name then position. After a complete emit pass it should be empty.
func (s *Scope) Outstanding() []Outstanding {
	var out []Outstanding
	for name, gens := range s.variables {
		for _, g := range gens {
			if g.PendingUses > 0 {
				out = append(out, Outstanding{Name: name, Generation: g})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Generation.Position < out[j].Generation.Position
	})
	return out
}

// CheckExhausted returns an UNRESOLVED_USE error for the first outstanding
// generation, or nil when every registered use was resolved.
func (s *Scope) CheckExhausted() error {
	pending := s.Outstanding()
	if len(pending) == 0 {
		return nil
	}
	first := pending[0]
	return &Error{
		Code:     ErrCodeUnresolvedUse,
		Name:     first.Name,
		Position: first.Generation.Position,
		Message:  fmt.Sprintf("%d registered use(s) never resolved (%d generation(s) affected)", first.Generation.PendingUses, len(pending)),
	}
}
