package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/schema"
)

func TestInMemorySendRecvRoundTrip(t *testing.T) {
	fleet := NewInMemoryFleet(2)
	driver, worker := fleet[0], fleet[1]

	ctx := context.Background()
	require.NoError(t, worker.Send(ctx, 0, Message{Tag: ReqInput, Int: 1}))

	msg, err := driver.Recv(ctx, 1, ReqInput)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Int)
	assert.Equal(t, 1, msg.From)
}

func TestTestAnyIsNonBlocking(t *testing.T) {
	fleet := NewInMemoryFleet(2)
	driver, worker := fleet[0], fleet[1]

	pending := driver.PostRecv(1, ReqInput)
	_, _, ready := driver.TestAny([]*Pending{pending})
	assert.False(t, ready, "TestAny must report not-ready before any Send")

	require.NoError(t, worker.Send(context.Background(), 0, Message{Tag: ReqInput, Int: 7}))
	msg, which, ready := driver.TestAny([]*Pending{pending})
	require.True(t, ready)
	assert.Same(t, pending, which)
	assert.Equal(t, int64(7), msg.Int)
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	fleet := NewInMemoryFleet(2)
	driver := fleet[0]

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := driver.Recv(ctx, 1, ReqInput)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroadcastReachesEveryOtherRank(t *testing.T) {
	fleet := NewInMemoryFleet(3)
	pendings := make([]*Pending, 0, 2)
	for r := 1; r < 3; r++ {
		pendings = append(pendings, fleet[r].PostRecv(0, EndSim))
	}

	require.NoError(t, fleet[0].Broadcast(context.Background(), Message{Tag: EndSim, Int: 1}))

	for i, r := range []int{1, 2} {
		msg, err := fleet[r].Recv(context.Background(), 0, EndSim)
		require.NoError(t, err)
		assert.Equal(t, int64(1), msg.Int)
		_ = pendings[i] // posted receives are superseded by the direct Recv above
	}
}

func TestWireRoundTripPreservesMutableCoordinates(t *testing.T) {
	s, err := schema.New([]schema.Parameter{
		{Index: 0, Name: "x0", Kind: schema.Real, Min: -1, Max: 1, Step: 1e-4, Display: true},
		{Index: 1, Name: "n0", Kind: schema.Integer, Min: 0, Max: 100, Step: 1, Display: true},
		{Index: 2, Name: "flag", Kind: schema.Boolean, Display: true},
		{Index: 3, Name: "fixed", Kind: schema.Real, Min: 0, Max: 1, Init: 0.25, Display: true, Fixed: true},
	})
	require.NoError(t, err)

	c := candidate.New(s)
	c.Set(0, candidate.RealValue(0.1234))
	c.Set(1, candidate.IntValue(42))
	c.Set(2, candidate.BoolValue(true))

	vec := ToWire(c)
	back := FromWire(s, vec)

	assert.InDelta(t, 0.1234, back.Get(0).Float(), 5e-5)
	assert.Equal(t, 42.0, back.Get(1).Float())
	assert.True(t, back.Get(2).Bool())
	assert.Equal(t, 0.25, back.Get(3).Float(), "fixed parameter must come from the schema, not the wire vector")
}
