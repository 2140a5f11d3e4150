// Package problem implements the Problem adapter boundary from spec.md §1/
// §4.5: a thin indirection to an external (or in-process) evaluator,
// returning a finite fitness or an invalid sentinel. Concrete adapters are
// grounded on the original dabmpi ProblemFusion/ProblemNonSeparable
// (_examples/original_source/src/), selected via the CLI's `-p` flag
// (spec.md §6).
package problem

import (
	"context"
	"fmt"
	"math"

	"github.com/antoniogi/dabmpi/internal/candidate"
)

// Infinity mirrors the original source's util.infinity sentinel: spec.md
// §4.4/§7 treat any fitness >= Infinity/100 as invalid.
const Infinity = 1e30

// Problem is the external-evaluator boundary. Solve is called once per
// candidate, by the worker that owns workDir (spec.md §5: "Worker rank r
// owns directory <r>/ exclusively").
type Problem interface {
	// Solve evaluates candidate c, using workDir for any scratch files the
	// underlying evaluator needs, and returns its fitness. An error means
	// the evaluation itself failed (process crash, malformed output); the
	// caller treats that exactly like an out-of-range fitness (spec.md §7:
	// evaluator-invalid-result).
	Solve(ctx context.Context, c *candidate.Candidate, workDir string) (float64, error)
}

// Valid reports whether fitness is usable: finite, and strictly positive,
// and below Infinity/100 (spec.md §4.4 step 3 / §7).
func Valid(fitness float64) bool {
	if math.IsNaN(fitness) || math.IsInf(fitness, 0) {
		return false
	}
	return fitness > 0 && fitness < Infinity/100
}

// Kind names the two adapters spec.md §6's `-p {FUSION|NONSEPARABLE}` flag
// selects between.
type Kind string

const (
	KindFusion       Kind = "FUSION"
	KindNonSeparable Kind = "NONSEPARABLE"
)

// New builds the Problem adapter named by kind.
func New(kind Kind, fusionCmd string) (Problem, error) {
	switch kind {
	case KindFusion:
		return NewFusion(fusionCmd), nil
	case KindNonSeparable:
		return NewNonSeparable(), nil
	default:
		return nil, fmt.Errorf("problem: unknown problem type %q", kind)
	}
}
