package candidate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniogi/dabmpi/internal/schema"
)

func testSchema(t *testing.T) *schema.ParameterSchema {
	t.Helper()
	params := []schema.Parameter{
		{Index: 0, Name: "x0", Kind: schema.Real, Min: -5, Max: 5, Step: 0.01, Display: true},
		{Index: 1, Name: "n0", Kind: schema.Integer, Min: 0, Max: 10, Step: 1, Display: true},
		{Index: 2, Name: "flag", Kind: schema.Boolean, Display: true},
		{Index: 3, Name: "fixed", Kind: schema.Real, Min: 0, Max: 1, Init: 0.5, Display: true, Fixed: true},
		{Index: 4, Name: "hidden", Kind: schema.Real, Min: 0, Max: 1, Display: false},
	}
	s, err := schema.New(params)
	require.NoError(t, err)
	return s
}

func TestRandomSnapsToGrid(t *testing.T) {
	s := testSchema(t)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		c := Random(s, rng)
		x0 := c.Get(0).Float()
		assert.GreaterOrEqual(t, x0, -5.0)
		assert.LessOrEqual(t, x0, 5.0)

		n0 := c.Get(1).Float()
		assert.Equal(t, 0.0, n0-float64(int(n0)), "integer parameter must snap to a whole grid point")
	}
}

func TestRandomLeavesFixedAndHiddenAlone(t *testing.T) {
	s := testSchema(t)
	rng := rand.New(rand.NewSource(2))
	c := Random(s, rng)
	assert.Equal(t, 0.5, c.Get(3).Float(), "fixed parameter must keep its init value")
	assert.Equal(t, 0.0, c.Get(4).Float(), "non-display parameter must keep its init value")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := testSchema(t)
	rng := rand.New(rand.NewSource(3))
	c := Random(s, rng)

	encoded := Encode(c)
	decoded, err := Decode(s, encoded)
	require.NoError(t, err)

	for i := 0; i < s.Len(); i++ {
		assert.True(t, c.Get(i).Equal(decoded.Get(i), 5e-5), "index %d: %v != %v", i, c.Get(i), decoded.Get(i))
	}
}

func TestDecodeRejectsWrongParameterCount(t *testing.T) {
	s := testSchema(t)
	_, err := Decode(s, "0:1.0,1:2")
	assert.Error(t, err)
}

func TestDecodeRejectsDuplicateIndex(t *testing.T) {
	s := testSchema(t)
	_, err := Decode(s, "0:1.0,0:2.0,1:1,2:1,3:0.5,4:0.1")
	assert.Error(t, err)
}

func TestCloneIsIndependentAndUnevaluated(t *testing.T) {
	s := testSchema(t)
	rng := rand.New(rand.NewSource(4))
	c := Random(s, rng)
	fit := 1.0
	c.Fitness = &fit

	clone := c.Clone()
	assert.Nil(t, clone.Fitness)
	clone.Set(0, RealValue(999))
	assert.NotEqual(t, c.Get(0).Float(), clone.Get(0).Float())
}

func TestDiffersFromIgnoresFixedAndHidden(t *testing.T) {
	s := testSchema(t)
	rng := rand.New(rand.NewSource(5))
	c := Random(s, rng)
	clone := c.Clone()

	// Only perturb the fixed and hidden coordinates; mutable coordinates
	// are identical, so DiffersFrom must report false.
	clone.Set(3, RealValue(0.9))
	clone.Set(4, RealValue(0.9))
	assert.False(t, c.DiffersFrom(clone, 1e-9))

	clone.Set(0, RealValue(c.Get(0).Float()+1))
	assert.True(t, c.DiffersFrom(clone, 1e-9))
}
