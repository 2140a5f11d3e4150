// Package dabcontext replaces the original Utils.logger / Utils.comm /
// Utils.objective process-wide singletons (spec.md §9 design note) with an
// explicit Context passed into the driver and worker constructors.
package dabcontext

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Objective selects whether fitness is better-when-larger or
// better-when-smaller; it flips SolutionQueue ordering and the
// fitness-mass formula used by roulette selection.
type Objective int

const (
	Maximize Objective = iota
	Minimize
)

func (o Objective) String() string {
	if o == Maximize {
		return "max"
	}
	return "min"
}

// Better reports whether candidate fitness a is strictly better than b
// under this objective.
func (o Objective) Better(a, b float64) bool {
	if o == Maximize {
		return a > b
	}
	return a < b
}

// Mass converts a fitness value into the roulette-wheel weight spec.md §4.1
// (totalFitnessMass) and §4.2 (Onlooker seed selection) use: the fitness
// itself when maximizing, its reciprocal when minimizing.
func (o Objective) Mass(fitness float64) float64 {
	if o == Maximize {
		return fitness
	}
	if fitness == 0 {
		return 0
	}
	return 1.0 / fitness
}

// Context bundles the run-wide collaborators the driver and worker loops
// need: the objective sense, a seeded RNG, a logger, a tracer, a clock
// (injectable for tests) and the run's absolute deadline.
type Context struct {
	Objective Objective
	Rand      *rand.Rand
	Logger    *logrus.Entry
	Tracer    trace.Tracer
	Now       func() time.Time
	StartTime time.Time
	Deadline  time.Time

	// SafetyMargin is the window before Deadline at which both loops start
	// winding down (spec.md §5: fixed at 5 minutes).
	SafetyMargin time.Duration
}

// New builds a Context with real wall-clock time and the given deadline.
func New(objective Objective, seed int64, logger *logrus.Entry, tracer trace.Tracer, runtime, safetyMargin time.Duration) *Context {
	start := time.Now()
	return &Context{
		Objective:    objective,
		Rand:         rand.New(rand.NewSource(seed)),
		Logger:       logger,
		Tracer:       tracer,
		Now:          time.Now,
		StartTime:    start,
		Deadline:     start.Add(runtime),
		SafetyMargin: safetyMargin,
	}
}

// WindingDown reports whether now + SafetyMargin has reached the deadline —
// the signal both DriverLoop and WorkerLoop use to start draining (spec.md §5).
func (c *Context) WindingDown() bool {
	return !c.Now().Add(c.SafetyMargin).Before(c.Deadline)
}

// Overrun reports whether the deadline itself (no margin) has passed, the
// point at which the driver abandons outstanding slots unconditionally.
func (c *Context) Overrun() bool {
	return !c.Now().Before(c.Deadline)
}
