package probmatrix

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/schema"
)

func testSchema(t *testing.T) *schema.ParameterSchema {
	t.Helper()
	s, err := schema.New([]schema.Parameter{
		{Index: 0, Name: "x0", Kind: schema.Real, Min: 0, Max: 1, Step: 0.1, Display: true},
		{Index: 1, Name: "fixed", Kind: schema.Real, Min: 0, Max: 1, Init: 0.5, Display: true, Fixed: true},
	})
	require.NoError(t, err)
	return s
}

func TestDisabledMatrixNeverSamplesOrUpdates(t *testing.T) {
	s := testSchema(t)
	m := New(s, false)
	assert.False(t, m.Enabled())

	base := candidate.New(s)
	_, ok := m.Sample(base, rand.New(rand.NewSource(1)))
	assert.False(t, ok)

	m.Update(base, true) // must not panic and must be a no-op
}

// TestEnabledMatrixLeavesUnlearnedParametersAtTheBaseValue matches the
// ground truth (getSolutionBasedOnMatrix): a row with no learning yet (all
// cells at the 1.0 floor) is skipped, leaving the base candidate's value
// for that parameter untouched rather than redrawing it.
func TestEnabledMatrixLeavesUnlearnedParametersAtTheBaseValue(t *testing.T) {
	s := testSchema(t)
	m := New(s, true)
	rng := rand.New(rand.NewSource(2))

	base := candidate.New(s)
	base.Set(0, candidate.RealValue(0.7))

	c, ok := m.Sample(base, rng)
	require.True(t, ok)
	assert.Equal(t, 0.5, c.Get(1).Float(), "fixed parameter must be untouched by sampling")
	assert.Equal(t, 0.7, c.Get(0).Float(), "unlearned row must leave the base candidate's value untouched")
}

func TestUpdateBoostsSampledColumnTowardRepeatedDraws(t *testing.T) {
	s := testSchema(t)
	m := New(s, true)
	c := candidate.New(s)
	c.Set(0, candidate.RealValue(1.0)) // snaps to the top grid column

	for i := 0; i < 50; i++ {
		m.Update(c, true)
	}

	base := candidate.New(s)
	rng := rand.New(rand.NewSource(3))
	hitTop := 0
	const trials = 200
	for i := 0; i < trials; i++ {
		sample, ok := m.Sample(base, rng)
		require.True(t, ok)
		if sample.Get(0).Float() >= 0.95 {
			hitTop++
		}
	}
	assert.Greater(t, hitTop, trials/2, "repeated boosting of one column must bias sampling toward it")
}
