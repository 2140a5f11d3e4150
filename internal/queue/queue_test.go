package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/schema"
)

func testSchema(t *testing.T) *schema.ParameterSchema {
	t.Helper()
	s, err := schema.New([]schema.Parameter{
		{Index: 0, Name: "x0", Kind: schema.Real, Min: -5, Max: 5, Step: 0.01, Display: true},
	})
	require.NoError(t, err)
	return s
}

func candidateWith(t *testing.T, s *schema.ParameterSchema, x float64) *candidate.Candidate {
	t.Helper()
	c := candidate.New(s)
	c.Set(0, candidate.RealValue(x))
	return c
}

// TestQueueOrdering matches spec.md §8's literal priority-queue example:
// inserting (A,10,1),(B,20,2),(C,15,1),(D,5,3),(E,25,2),(F,18,4) into a
// max-objective, maxSize=5 queue yields final fitnesses [25,20,18,15,10],
// with origin 2 retaining both its entries and the 5-fitness entry evicted.
func TestQueueOrdering(t *testing.T) {
	s := testSchema(t)
	q, err := New(Config{MaxSize: 5, Mode: Priority}, s, dabcontext.Maximize)
	require.NoError(t, err)

	type insertion struct {
		fitness float64
		origin  int
	}
	for _, ins := range []insertion{
		{10, 1}, {20, 2}, {15, 1}, {5, 3}, {25, 2}, {18, 4},
	} {
		require.NoError(t, q.Put(candidateWith(t, s, ins.fitness), ins.fitness, ins.origin, 3))
	}

	entries := q.All()
	require.Len(t, entries, 5)
	var fitnesses []float64
	origin2Count := 0
	for _, e := range entries {
		fitnesses = append(fitnesses, e.Fitness)
		if e.Origin == 2 {
			origin2Count++
		}
	}
	assert.Equal(t, []float64{25, 20, 18, 15, 10}, fitnesses)
	assert.Equal(t, 2, origin2Count, "origin 2 must retain both its entries")
}

// TestEliteDiversityAdmitsUnderrepresentedOrigin matches spec.md §8's
// elite-diversity example: 20 origin=1 entries of identical fitness, then
// one origin=2 entry of lower fitness, must still be admitted.
func TestEliteDiversityAdmitsUnderrepresentedOrigin(t *testing.T) {
	s := testSchema(t)
	q, err := New(Config{MaxSize: 10, Mode: Priority}, s, dabcontext.Maximize)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Put(candidateWith(t, s, 1.0), 1.0, 1, 3))
	}
	require.NoError(t, q.Put(candidateWith(t, s, 0.5), 0.5, 2, 3))

	found := false
	for _, e := range q.All() {
		if e.Origin == 2 {
			found = true
		}
	}
	assert.True(t, found, "queue must contain at least one origin=2 entry")
}

func TestFIFOQueueRespectsMaxSizeAndOrder(t *testing.T) {
	s := testSchema(t)
	q, err := New(Config{MaxSize: 3, Mode: FIFO}, s, dabcontext.Maximize)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Put(candidateWith(t, s, float64(i)), NotEvaluated, i, 3))
	}
	assert.Equal(t, 3, q.Size(), "FIFO queue must stop growing past maxSize")

	_, _, origin, ok := q.Get(true)
	require.True(t, ok)
	assert.Equal(t, 0, origin, "FIFO dequeue must return the oldest entry first")
}

func TestFlushReloadIsIdempotentUnderPriorityOrder(t *testing.T) {
	s := testSchema(t)
	path := filepath.Join(t.TempDir(), "elite.queue")

	q, err := New(Config{Filename: path, MaxSize: 10, Mode: Priority, Persist: true}, s, dabcontext.Maximize)
	require.NoError(t, err)
	for _, fit := range []float64{3, 1, 4, 1, 5} {
		require.NoError(t, q.Put(candidateWith(t, s, fit), fit, 1, 3))
	}
	before := q.All()
	require.NoError(t, q.Flush())
	require.NoError(t, q.Close())

	reloaded, err := New(Config{Filename: path, MaxSize: 10, Mode: Priority, Persist: true}, s, dabcontext.Maximize)
	require.NoError(t, err)
	after := reloaded.All()

	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].Fitness, after[i].Fitness)
		assert.Equal(t, before[i].Origin, after[i].Origin)
	}

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestPickByRouletteRespectsMass(t *testing.T) {
	s := testSchema(t)
	q, err := New(Config{MaxSize: 10, Mode: Priority}, s, dabcontext.Maximize)
	require.NoError(t, err)
	require.NoError(t, q.Put(candidateWith(t, s, 10), 10, 1, 3))
	require.NoError(t, q.Put(candidateWith(t, s, 90), 90, 2, 3))

	mass := q.TotalFitnessMass()
	assert.Equal(t, 100.0, mass)

	_, fitness, origin, ok := q.PickByRoulette(50)
	require.True(t, ok)
	assert.Equal(t, 90.0, fitness)
	assert.Equal(t, 2, origin)
}
