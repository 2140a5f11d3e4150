// Package solver implements the `-s {DAB|SA}` selection surface from
// spec.md §6. DAB is the engine this repository implements; SA
// (Simulated Annealing) is a stub, matching spec.md §1's scope note and
// the original dabmpi SolverSA.py (_examples/original_source/src/SolverSA.py),
// which is itself a stub with no working annealing schedule.
package solver

import "fmt"

// Kind names the two solver types the CLI accepts.
type Kind string

const (
	DAB Kind = "DAB"
	SA  Kind = "SA"
)

// Validate reports a configuration error for any solver kind this engine
// doesn't implement. SA is accepted by the CLI (so `-s SA` isn't an
// "unknown flag value" error) but is not implemented — spec.md §1 lists it
// as "a stub" deliberately out of scope.
func Validate(k Kind) error {
	switch k {
	case DAB:
		return nil
	case SA:
		return fmt.Errorf("solver: SA is a stub in this build — no annealing schedule is implemented, use -s DAB")
	default:
		return fmt.Errorf("solver: unknown solver type %q", k)
	}
}
