package agent

import (
	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/schema"
)

// equalityTolerance is used only to decide whether a mutated clone
// actually differs from its seed (spec.md §8: "at least one mutable
// coordinate differs"). It is far smaller than any realistic parameter
// step, so it never masks a genuine grid-snapped change.
const equalityTolerance = 1e-9

// coordinateMutator produces a new value for one mutable parameter given
// its current value, shared by the Employed and Onlooker perturbation
// loops below.
type coordinateMutator func(p schema.Parameter, cur candidate.Value, ctx *dabcontext.Context) candidate.Value

// mutateUntilChanged repeatedly perturbs clone's mutable coordinates
// (each independently selected with probability prob) until at least one
// differs from seed, per spec.md §4.2's "Loop until at least one
// coordinate actually changed" for both Employed and Onlooker. A bounded
// retry count with a forced single-coordinate fallback guarantees
// termination even if prob is 0 or every draw happens to be a no-op.
func mutateUntilChanged(seed, clone *candidate.Candidate, ctx *dabcontext.Context, prob float64, mutateFn coordinateMutator) {
	const maxAttempts = 200
	indices := seed.Schema.MutableIndices()
	if len(indices) == 0 {
		return
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		for _, idx := range indices {
			if ctx.Rand.Float64() >= prob {
				continue
			}
			p := seed.Schema.At(idx)
			clone.Set(idx, mutateFn(p, clone.Get(idx), ctx))
		}
		if clone.DiffersFrom(seed, equalityTolerance) {
			return
		}
		copy(clone.Values, seed.Values)
	}
	idx := indices[ctx.Rand.Intn(len(indices))]
	p := seed.Schema.At(idx)
	clone.Set(idx, forceMutate(p, clone.Get(idx), ctx))
}

// mutateEmployedCoordinate implements spec.md §4.2 Employed step 2: real
// and integer parameters are resampled in a local window
// [current-10*step, current+10*step] clipped to [min,max] and snapped to
// the grid; booleans flip.
func mutateEmployedCoordinate(p schema.Parameter, cur candidate.Value, ctx *dabcontext.Context) candidate.Value {
	switch p.Kind {
	case schema.Boolean:
		return candidate.BoolValue(!cur.Bool())
	case schema.Real, schema.Integer:
		window := 10 * p.Step
		lo, hi := windowBounds(p, cur.Float(), window)
		v := lo + ctx.Rand.Float64()*(hi-lo)
		if p.Kind == schema.Integer {
			return candidate.IntValue(p.Snap(v))
		}
		return candidate.RealValue(p.Snap(v))
	default:
		return cur
	}
}

// mutateOnlookerCoordinate implements spec.md §4.2 Onlooker step 2: real
// parameters use a fractional window [v*(1-mod), v*(1+mod)] intersected
// with bounds; integers use [v-2*step, v+2*step] intersected with bounds,
// expanding degenerate (min==max after intersection) windows; booleans
// flip.
func mutateOnlookerCoordinate(p schema.Parameter, cur candidate.Value, ctx *dabcontext.Context, modFactor float64) candidate.Value {
	switch p.Kind {
	case schema.Boolean:
		return candidate.BoolValue(!cur.Bool())
	case schema.Real:
		v := cur.Float()
		lo, hi := v*(1-modFactor), v*(1+modFactor)
		if hi < lo {
			lo, hi = hi, lo
		}
		lo, hi = intersect(p, lo, hi)
		val := lo + ctx.Rand.Float64()*(hi-lo)
		return candidate.RealValue(p.Snap(val))
	case schema.Integer:
		lo, hi := windowBounds(p, cur.Float(), 2*p.Step)
		val := lo + ctx.Rand.Float64()*(hi-lo)
		return candidate.IntValue(p.Snap(val))
	default:
		return cur
	}
}

// windowBounds clips [v-half, v+half] to [p.Min, p.Max].
func windowBounds(p schema.Parameter, v, half float64) (float64, float64) {
	return intersect(p, v-half, v+half)
}

// intersect clips [lo,hi] to [p.Min,p.Max], expanding a degenerate
// (lo==hi) result back out to the full parameter range so a uniform draw
// over it is always well-formed (spec.md §4.2 Onlooker integer case:
// "ensure min < max by expanding if needed").
func intersect(p schema.Parameter, lo, hi float64) (float64, float64) {
	if lo < p.Min {
		lo = p.Min
	}
	if hi > p.Max {
		hi = p.Max
	}
	if hi <= lo {
		return p.Min, p.Max
	}
	return lo, hi
}

// forceMutate is the fallback used when the probabilistic loop in
// mutateUntilChanged fails to produce any change after its retry budget:
// it nudges the coordinate by exactly one grid step (or flips a boolean),
// guaranteeing a difference.
func forceMutate(p schema.Parameter, cur candidate.Value, ctx *dabcontext.Context) candidate.Value {
	switch p.Kind {
	case schema.Boolean:
		return candidate.BoolValue(!cur.Bool())
	case schema.Integer:
		return candidate.IntValue(p.Snap(nudge(p, cur.Float())))
	case schema.Real:
		return candidate.RealValue(p.Snap(nudge(p, cur.Float())))
	default:
		return cur
	}
}

func nudge(p schema.Parameter, v float64) float64 {
	step := p.Step
	if step <= 0 {
		step = (p.Max - p.Min) / 100
	}
	if v+step <= p.Max {
		return v + step
	}
	return v - step
}
