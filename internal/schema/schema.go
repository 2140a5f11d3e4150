package schema

import (
	"fmt"
)

// ParameterSchema is the ordered, immutable sequence of Parameter
// descriptors read once at startup (spec.md §3). It is shared by every
// Candidate created during the run.
type ParameterSchema struct {
	params []Parameter
}

// New validates and wraps params into an immutable ParameterSchema.
// Indices must be unique and dense from 0 (spec.md §3 invariant).
func New(params []Parameter) (*ParameterSchema, error) {
	seen := make([]bool, len(params))
	for _, p := range params {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if p.Index < 0 || p.Index >= len(params) {
			return nil, fmt.Errorf("parameter %q has out-of-range index %d (expected 0..%d)", p.Name, p.Index, len(params)-1)
		}
		if seen[p.Index] {
			return nil, fmt.Errorf("duplicate parameter index %d", p.Index)
		}
		seen[p.Index] = true
	}
	ordered := make([]Parameter, len(params))
	for _, p := range params {
		ordered[p.Index] = p
	}
	return &ParameterSchema{params: ordered}, nil
}

// Len returns the number of parameters (dense dimensionality of the vector).
func (s *ParameterSchema) Len() int { return len(s.params) }

// At returns the parameter at the given dense index.
func (s *ParameterSchema) At(i int) Parameter { return s.params[i] }

// All returns the ordered parameter slice. Callers must not mutate it.
func (s *ParameterSchema) All() []Parameter { return s.params }

// MutableIndices returns the dense indices of parameters the search is
// allowed to perturb (display && !fixed).
func (s *ParameterSchema) MutableIndices() []int {
	var out []int
	for _, p := range s.params {
		if p.Mutable() {
			out = append(out, p.Index)
		}
	}
	return out
}

// MaxSteps returns the ProbabilityMatrix column count (spec.md §3).
func (s *ParameterSchema) MaxSteps() int { return MaxSteps(s.params) }
