package problem

import (
	"context"
	"math"

	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/schema"
)

// NonSeparable is the analytic in-process benchmark selected by `-p
// NONSEPARABLE` (spec.md §6). Despite the name, the original
// ProblemNonSeparable.solve (_examples/original_source/src/ProblemNonSeparable.py)
// computes a Rosenbrock-family function: Σ 100·(x_i² − x_{i+1})² + (x_i+1)²
// over adjacent coordinate pairs. It needs no external process and no
// per-worker working directory.
type NonSeparable struct{}

func NewNonSeparable() *NonSeparable { return &NonSeparable{} }

func (p *NonSeparable) Solve(_ context.Context, c *candidate.Candidate, _ string) (float64, error) {
	values := numericValues(c)
	if len(values) < 2 {
		return 0, nil
	}
	total := 0.0
	for i := 0; i < len(values)-1; i++ {
		a := values[i]*values[i] - values[i+1]
		b := values[i] + 1
		total += 100*a*a + b*b
	}
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return -1, nil
	}
	return total, nil
}

func numericValues(c *candidate.Candidate) []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if v.Kind() == schema.Real || v.Kind() == schema.Integer {
			out = append(out, v.Float())
		}
	}
	return out
}
