// Package probmatrix implements the optional ProbabilityMatrix (spec.md
// §3/§4.3): a dense P×V table of empirical-success counts per
// (mutable parameter, discrete value), used as a biased sampler by
// Employed agents and refreshed on every evaluated candidate.
package probmatrix

import (
	"math/rand"

	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/schema"
)

// Matrix is a ProbabilityMatrix instance.
type Matrix struct {
	schema  *schema.ParameterSchema
	rows    []schema.Parameter // one row per mutable parameter, in schema order
	rowIdx  map[int]int        // schema parameter index -> row index
	cols    int
	cells   [][]float64
	enabled bool
}

// New builds a Matrix over every mutable parameter in s. If enabled is
// false, Sample always reports ok=false and Update is a no-op — this lets
// the driver hold a Matrix unconditionally and gate its use on the INI
// `useProbMatrix` option without branching at every call site.
func New(s *schema.ParameterSchema, enabled bool) *Matrix {
	m := &Matrix{schema: s, enabled: enabled, rowIdx: make(map[int]int)}
	cols := s.MaxSteps()
	if cols < 2 {
		cols = 2
	}
	m.cols = cols
	for _, p := range s.All() {
		if !p.Mutable() {
			continue
		}
		m.rowIdx[p.Index] = len(m.rows)
		m.rows = append(m.rows, p)
	}
	m.cells = make([][]float64, len(m.rows))
	for i := range m.cells {
		row := make([]float64, m.cols)
		for j := range row {
			row[j] = 1.0
		}
		m.cells[i] = row
	}
	return m
}

// Enabled reports whether this matrix is in use for this run.
func (m *Matrix) Enabled() bool { return m.enabled }

func (m *Matrix) columnsFor(p schema.Parameter) int {
	if p.Kind == schema.Boolean {
		return 2
	}
	return p.Steps()
}

func (m *Matrix) column(p schema.Parameter, v candidate.Value) int {
	switch p.Kind {
	case schema.Boolean:
		if v.Bool() {
			return 1
		}
		return 0
	case schema.Real, schema.Integer:
		if p.Step <= 0 {
			return 0
		}
		j := int((v.Float() - p.Min) / p.Step)
		if j < 0 {
			j = 0
		}
		if max := p.Steps() - 1; j > max {
			j = max
		}
		return j
	default:
		return 0
	}
}

func columnValue(p schema.Parameter, j int) candidate.Value {
	switch p.Kind {
	case schema.Boolean:
		return candidate.BoolValue(j == 1)
	case schema.Integer:
		return candidate.IntValue(p.Snap(p.Min + float64(j)*p.Step))
	default: // Real
		return candidate.RealValue(p.Snap(p.Min + float64(j)*p.Step))
	}
}

// Sample draws a full Candidate starting from base (the caller's
// local-best) and row-sampling every mutable parameter independently
// (spec.md §4.3, _examples/original_source/src/SolverDAB.py:190-220
// getSolutionBasedOnMatrix, which starts from solutionCopy =
// getBestLocalSolution()). A parameter whose row hasn't learned anything
// yet (row-sum == column count, all cells still at the 1.0 floor) is left
// untouched at base's value instead of being redrawn — the original's
// `if (s == V): continue`.
func (m *Matrix) Sample(base *candidate.Candidate, rng *rand.Rand) (*candidate.Candidate, bool) {
	if !m.enabled {
		return nil, false
	}
	c := base.Clone()
	for i := 0; i < m.schema.Len(); i++ {
		p := m.schema.At(i)
		if !p.Mutable() {
			continue
		}
		row, ok := m.rowIdx[p.Index]
		if !ok {
			continue
		}
		if v, ok := m.sampleRow(p, row, rng); ok {
			c.Set(p.Index, v)
		}
	}
	return c, true
}

func (m *Matrix) sampleRow(p schema.Parameter, row int, rng *rand.Rand) (candidate.Value, bool) {
	cells := m.cells[row]
	v := cells[:m.columnsFor(p)]
	sum := 0.0
	for _, c := range v {
		sum += c
	}
	if sum == float64(len(v)) {
		// No learning yet (every cell still at its 1.0 floor): skip this
		// parameter, leaving the base candidate's value untouched.
		return candidate.Value{}, false
	}
	u := float64(len(v)) + rng.Float64()*(sum-float64(len(v)))
	running := 0.0
	for j, w := range v {
		running += w
		if running >= u {
			return columnValue(p, j), true
		}
	}
	return columnValue(p, len(v)-1), true
}

// Update refreshes the matrix after an evaluated candidate (spec.md §4.3).
// Every cell decays toward its 1.0 floor, then the candidate's own
// grid-quantized cells are boosted. A new-best candidate gets a stronger
// decay/boost pass in place of the normal one, rather than stacked on top
// of it, so a single candidate is scored exactly once per tick.
func (m *Matrix) Update(c *candidate.Candidate, isNewBest bool) {
	if !m.enabled {
		return
	}
	decay, boost := 0.01, 0.5
	if isNewBest {
		decay, boost = 0.5, 5.0
	}
	for _, row := range m.cells {
		for j, v := range row {
			v -= decay
			if v < 1.0 {
				v = 1.0
			}
			row[j] = v
		}
	}
	for i := 0; i < m.schema.Len(); i++ {
		p := m.schema.At(i)
		if !p.Mutable() {
			continue
		}
		row, ok := m.rowIdx[p.Index]
		if !ok {
			continue
		}
		j := m.column(p, c.Get(p.Index))
		m.cells[row][j] += boost
	}
}
