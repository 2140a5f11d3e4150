package candidate

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/antoniogi/dabmpi/internal/schema"
)

func seededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func propertySchema(t *testing.T) *schema.ParameterSchema {
	t.Helper()
	s, err := schema.New([]schema.Parameter{
		{Index: 0, Name: "x0", Kind: schema.Real, Min: -100, Max: 100, Step: 0.001, Display: true},
		{Index: 1, Name: "n0", Kind: schema.Integer, Min: 0, Max: 1000, Step: 1, Display: true},
		{Index: 2, Name: "flag", Kind: schema.Boolean, Display: true},
	})
	require.NoError(t, err)
	return s
}

// TestEncodeDecodeRoundTripsArbitraryRealValues checks that encoding then
// decoding a candidate built from any in-range real coordinate reproduces
// the same value within the schema's grid resolution (spec.md §8's
// round-trip tolerance), for a wide spread of generated inputs rather than
// a handful of fixed examples.
func TestEncodeDecodeRoundTripsArbitraryRealValues(t *testing.T) {
	s := propertySchema(t)
	properties := gopter.NewProperties(nil)

	properties.Property("EncodeDecodeRoundTrip", prop.ForAll(
		func(x float64, n int, flag bool) bool {
			c := New(s)
			c.Set(0, RealValue(x))
			c.Set(1, IntValue(float64(n)))
			c.Set(2, BoolValue(flag))

			back, err := Decode(s, Encode(c))
			if err != nil {
				return false
			}
			return back.Get(0).Equal(c.Get(0), 1e-6) &&
				back.Get(1).Equal(c.Get(1), 1e-9) &&
				back.Get(2).Bool() == flag
		},
		gen.Float64Range(-100, 100),
		gen.IntRange(0, 1000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestRandomAlwaysStaysOnTheDiscretizationGrid checks that every mutable
// real/integer coordinate Random produces is an exact multiple of its
// parameter's step size above its minimum, across many random seeds.
func TestRandomAlwaysStaysOnTheDiscretizationGrid(t *testing.T) {
	s := propertySchema(t)
	properties := gopter.NewProperties(nil)

	properties.Property("RandomSnapsToGrid", prop.ForAll(
		func(seed int64) bool {
			rng := seededRand(seed)
			c := Random(s, rng)

			x0 := c.Get(0).Float()
			if x0 < -100-1e-9 || x0 > 100+1e-9 {
				return false
			}
			steps := (x0 - (-100)) / 0.001
			if !nearInt(steps) {
				return false
			}

			n0 := c.Get(1).Float()
			return nearInt(n0)
		},
		gen.Int64Range(1, 1<<30),
	))

	properties.TestingRun(t)
}

func nearInt(v float64) bool {
	r := v - float64(int64(v+0.5))
	if r < 0 {
		r = -r
	}
	return r < 1e-6
}
