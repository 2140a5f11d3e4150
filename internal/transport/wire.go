package transport

import (
	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/schema"
)

// ToWire flattens a candidate's values into the numeric vector that
// travels over RecvFromDriver/CommSolution. Real/Integer carry their
// value directly; Boolean encodes as 0/1. String-kind parameters have no
// wire representation — the original dabmpi deployments only ever search
// over numeric VMEC inputs, so a receiving rank reconstructs them from its
// own schema (spec.md §3: fixed/non-display values never change) and the
// placeholder here is never read back.
func ToWire(c *candidate.Candidate) []float64 {
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		switch v.Kind() {
		case schema.Boolean:
			if v.Bool() {
				out[i] = 1
			}
		case schema.String:
			out[i] = 0
		default:
			out[i] = v.Float()
		}
	}
	return out
}

// FromWire rebuilds a Candidate against s, overwriting s's mutable numeric
// dimensions from vec. Fixed, non-display and string-kind dimensions come
// from the schema's own initialization value, matching ToWire's omission
// of them.
func FromWire(s *schema.ParameterSchema, vec []float64) *candidate.Candidate {
	c := candidate.New(s)
	for _, i := range s.MutableIndices() {
		if i >= len(vec) {
			continue
		}
		p := s.At(i)
		switch p.Kind {
		case schema.Real:
			c.Set(i, candidate.RealValue(vec[i]))
		case schema.Integer:
			c.Set(i, candidate.IntValue(vec[i]))
		case schema.Boolean:
			c.Set(i, candidate.BoolValue(vec[i] != 0))
		}
	}
	return c
}
