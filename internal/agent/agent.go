// Package agent implements the three bee kinds of spec.md §4.2: Employed
// (local search around a personal best), Onlooker (perturbs an elite-queue
// seed chosen by fitness-proportional selection) and Scout (uniform random
// restart). spec.md §9's design note replaces the source's BeeBase
// inheritance hierarchy with a single sum type distinguished by Kind.
package agent

import (
	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/probmatrix"
	"github.com/antoniogi/dabmpi/internal/queue"
	"github.com/antoniogi/dabmpi/internal/schema"
)

// Kind distinguishes the three agent variants.
type Kind int

const (
	Employed Kind = iota
	Onlooker
	Scout
)

func (k Kind) String() string {
	switch k {
	case Employed:
		return "employed"
	case Onlooker:
		return "onlooker"
	case Scout:
		return "scout"
	default:
		return "unknown"
	}
}

// Config carries the Bees INI section values (spec.md §6) that shape
// mutation probabilities and windows.
type Config struct {
	ProbEmployedChange float64
	ProbOnlookerChange float64
	OnlookerModFactor  float64
	IterAbandoned      int
}

// probability converts an inverse mutation-probability config value into
// the actual per-dimension probability 1/(value+1) (spec.md §4.2).
func probability(inverse float64) float64 {
	return 1.0 / (inverse + 1.0)
}

// Agent is a single bee. Only Employed agents carry persistent state
// (local-best, staleness); Onlooker and Scout hold nothing beyond their
// schema/config references (spec.md §3 AgentState).
type Agent struct {
	ID     int
	Kind   Kind
	schema *schema.ParameterSchema
	cfg    Config

	localBest      *candidate.Candidate
	localBestValue float64
	hasLocalBest   bool
	staleness      int
}

// NewEmployed builds an uninitialized Employed agent; its local-best is
// drawn on first Propose call (spec.md §4.2 "initialized by a random draw
// on first use").
func NewEmployed(id int, s *schema.ParameterSchema, cfg Config) *Agent {
	return &Agent{ID: id, Kind: Employed, schema: s, cfg: cfg}
}

// NewOnlooker builds an Onlooker agent.
func NewOnlooker(id int, s *schema.ParameterSchema, cfg Config) *Agent {
	return &Agent{ID: id, Kind: Onlooker, schema: s, cfg: cfg}
}

// NewScout builds a Scout agent.
func NewScout(id int, s *schema.ParameterSchema) *Agent {
	return &Agent{ID: id, Kind: Scout, schema: s}
}

// Staleness reports the current abandonment counter (Employed only).
func (a *Agent) Staleness() int { return a.staleness }

// LocalBestValue reports the Employed agent's tracked local-best fitness.
// Only meaningful once HasLocalBest is true.
func (a *Agent) LocalBestValue() float64 { return a.localBestValue }

// HasLocalBest reports whether this Employed agent has ever had its
// local-best initialized or set from an evaluation result.
func (a *Agent) HasLocalBest() bool { return a.hasLocalBest }

// Propose generates this agent's next candidate (spec.md §4.2). ctx
// supplies the RNG; pm is the optional ProbabilityMatrix; elite is the
// elite queue Onlooker seeds from. Returns (nil, -1) only for an Onlooker
// that cannot find a seed (empty elite queue).
func (a *Agent) Propose(ctx *dabcontext.Context, pm *probmatrix.Matrix, elite *queue.Queue) (*candidate.Candidate, int) {
	switch a.Kind {
	case Scout:
		return candidate.Random(a.schema, ctx.Rand), -1
	case Employed:
		return a.proposeEmployed(ctx, pm), a.ID
	case Onlooker:
		return a.proposeOnlooker(ctx, elite)
	default:
		return nil, -1
	}
}

func (a *Agent) proposeEmployed(ctx *dabcontext.Context, pm *probmatrix.Matrix) *candidate.Candidate {
	if !a.hasLocalBest {
		a.localBest = candidate.Random(a.schema, ctx.Rand)
		a.hasLocalBest = true
	}

	if pm != nil && pm.Enabled() && ctx.Rand.Float64() < (1.0/11.0) {
		if drawn, ok := pm.Sample(a.localBest, ctx.Rand); ok {
			return drawn
		}
	}

	clone := a.localBest.Clone()
	mutateUntilChanged(a.localBest, clone, ctx, probability(a.cfg.ProbEmployedChange), mutateEmployedCoordinate)
	return clone
}

func (a *Agent) proposeOnlooker(ctx *dabcontext.Context, elite *queue.Queue) (*candidate.Candidate, int) {
	if elite == nil {
		return nil, -1
	}
	mass := elite.TotalFitnessMass()
	if mass <= 0 {
		return nil, -1
	}
	r := ctx.Rand.Float64() * mass
	seed, _, seedOrigin, ok := elite.PickByRoulette(r)
	if !ok {
		return nil, -1
	}
	perturbed := seed.Clone()
	mutateUntilChanged(seed, perturbed, ctx, probability(a.cfg.ProbOnlookerChange), func(p schema.Parameter, cur candidate.Value, ctx *dabcontext.Context) candidate.Value {
		return mutateOnlookerCoordinate(p, cur, ctx, a.cfg.OnlookerModFactor)
	})
	return perturbed, seedOrigin
}

// NoteResult feeds an ingested evaluation result back to this Employed
// agent (spec.md §4.4 step 3, §4.6 state machine): on improvement, the
// local-best is replaced and staleness resets to 0; otherwise staleness
// increments.
func (a *Agent) NoteResult(ctx *dabcontext.Context, c *candidate.Candidate, fitness float64) {
	if a.Kind != Employed {
		return
	}
	if !a.hasLocalBest || ctx.Objective.Better(fitness, a.localBestValue) || !validFitness(a.localBestValue) {
		a.localBest = c
		a.localBestValue = fitness
		a.hasLocalBest = true
		a.staleness = 0
		return
	}
	a.staleness++
}

func validFitness(f float64) bool { return f > 0 }

// NoteInvalid records a dispatched candidate that came back with an
// invalid fitness (spec.md §4.4 step 3): staleness still increments, but
// there is no real fitness to compare against the local-best.
func (a *Agent) NoteInvalid() {
	if a.Kind != Employed {
		return
	}
	a.staleness++
}

// MaybeAbandon implements the Employed "Abandoned" transition (spec.md
// §4.4 step 1, §4.6): when staleness exceeds iterAbandoned, the local-best
// is replaced by a fresh scout draw and staleness resets to 0. Returns the
// fresh draw and true when abandonment fired, so the caller can enqueue it
// with this agent's id as origin.
func (a *Agent) MaybeAbandon(ctx *dabcontext.Context) (*candidate.Candidate, bool) {
	if a.Kind != Employed || a.staleness <= a.cfg.IterAbandoned {
		return nil, false
	}
	fresh := candidate.Random(a.schema, ctx.Rand)
	a.localBest = fresh
	a.hasLocalBest = true
	a.staleness = 0
	return fresh, true
}
