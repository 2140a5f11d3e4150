// Package candidate implements the Candidate type from spec.md §3: a
// ParameterSchema paired with a mutable value vector of the same length,
// plus an optional fitness.
package candidate

import (
	"math/rand"

	"github.com/antoniogi/dabmpi/internal/schema"
)

// Candidate pairs a ParameterSchema with a value vector. Fitness is nil
// until the candidate has been evaluated.
type Candidate struct {
	Schema  *schema.ParameterSchema
	Values  []Value
	Fitness *float64
}

// New builds a Candidate whose values are each parameter's initialization
// value (fixed parameters keep this value for the candidate's lifetime;
// spec.md §3).
func New(s *schema.ParameterSchema) *Candidate {
	values := make([]Value, s.Len())
	for i := 0; i < s.Len(); i++ {
		p := s.At(i)
		switch p.Kind {
		case schema.Real:
			values[i] = RealValue(p.Init)
		case schema.Integer:
			values[i] = IntValue(p.Init)
		case schema.Boolean:
			values[i] = BoolValue(p.Init != 0)
		case schema.String:
			values[i] = StringValue(p.InitStr)
		}
	}
	return &Candidate{Schema: s, Values: values}
}

// Random draws a uniform random Candidate: every mutable parameter is
// sampled uniformly over its range and snapped to its discretization grid
// (real/integer) or drawn uniformly from {false,true} (boolean). Fixed and
// non-display parameters keep their initialization value. This is the
// Scout draw (spec.md §4.2) and is also used to seed an Employed agent's
// first local-best.
func Random(s *schema.ParameterSchema, rng *rand.Rand) *Candidate {
	c := New(s)
	for i := 0; i < s.Len(); i++ {
		p := s.At(i)
		if !p.Mutable() {
			continue
		}
		c.Values[i] = randomValue(p, rng)
	}
	return c
}

func randomValue(p schema.Parameter, rng *rand.Rand) Value {
	switch p.Kind {
	case schema.Real:
		v := p.Min + rng.Float64()*(p.Max-p.Min)
		return RealValue(p.Snap(v))
	case schema.Integer:
		v := p.Min + rng.Float64()*(p.Max-p.Min)
		return IntValue(p.Snap(v))
	case schema.Boolean:
		return BoolValue(rng.Intn(2) == 1)
	default:
		// String-kind parameters have no defined random distribution in
		// spec.md §4.2; they are carried through unperturbed.
		return StringValue(p.InitStr)
	}
}

// Clone deep-copies the candidate's value vector. The schema pointer is
// shared (it is immutable for the run) and Fitness is reset to nil — a
// clone is, by construction, an unevaluated proposal.
func (c *Candidate) Clone() *Candidate {
	values := make([]Value, len(c.Values))
	copy(values, c.Values)
	return &Candidate{Schema: c.Schema, Values: values}
}

// Get returns the value at dense index i.
func (c *Candidate) Get(i int) Value { return c.Values[i] }

// Set assigns the value at dense index i.
func (c *Candidate) Set(i int, v Value) { c.Values[i] = v }

// DiffersFrom reports whether any mutable coordinate differs between c and
// other, within the given real-valued tolerance. Employed and Onlooker
// proposals must differ from their seed in at least one coordinate
// (spec.md §8); this is the check their retry loops use.
func (c *Candidate) DiffersFrom(other *Candidate, tolerance float64) bool {
	for _, i := range c.Schema.MutableIndices() {
		if !c.Values[i].Equal(other.Values[i], tolerance) {
			return true
		}
	}
	return false
}
