package driver

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/antoniogi/dabmpi/internal/agent"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/problem"
	"github.com/antoniogi/dabmpi/internal/probmatrix"
	"github.com/antoniogi/dabmpi/internal/queue"
	"github.com/antoniogi/dabmpi/internal/schema"
	"github.com/antoniogi/dabmpi/internal/transport"
	"github.com/antoniogi/dabmpi/internal/worker"
)

func testSchema(t *testing.T) *schema.ParameterSchema {
	t.Helper()
	s, err := schema.New([]schema.Parameter{
		{Index: 0, Name: "x0", Kind: schema.Real, Min: -5, Max: 5, Step: 0.01, Display: true},
		{Index: 1, Name: "x1", Kind: schema.Real, Min: -5, Max: 5, Step: 0.01, Display: true},
	})
	require.NoError(t, err)
	return s
}

func testContext(t *testing.T, runtime time.Duration) *dabcontext.Context {
	t.Helper()
	return &dabcontext.Context{
		Objective:    dabcontext.Minimize,
		Rand:         rand.New(rand.NewSource(1)),
		Logger:       logrus.NewEntry(logrus.New()),
		Tracer:       trace.NewNoopTracerProvider().Tracer("test"),
		Now:          time.Now,
		StartTime:    time.Now(),
		Deadline:     time.Now().Add(runtime),
		SafetyMargin: time.Millisecond,
	}
}

func buildLoop(t *testing.T, tr transport.Transport, dctx *dabcontext.Context, workerRanks []int) *Loop {
	t.Helper()
	s := testSchema(t)
	pending, err := queue.New(queue.Config{MaxSize: 40, Mode: queue.FIFO}, s, dctx.Objective)
	require.NoError(t, err)
	finished, err := queue.New(queue.Config{MaxSize: 1 << 20, Mode: queue.Priority}, s, dctx.Objective)
	require.NoError(t, err)
	elite, err := queue.New(queue.Config{MaxSize: 10, Mode: queue.Priority}, s, dctx.Objective)
	require.NoError(t, err)

	agents := []*agent.Agent{
		agent.NewEmployed(0, s, agent.Config{ProbEmployedChange: 1, IterAbandoned: 20}),
		agent.NewScout(1, s),
	}
	pm := probmatrix.New(s, false)

	cfg := Config{
		WorkerRanks:       workerRanks,
		Sources:           3,
		PromotionDir:      t.TempDir(),
		WorkDirPrefix:     t.TempDir(),
		PendingSizeTarget: 4,
	}
	return New(cfg, s, tr, dctx, agents, pending, finished, elite, pm, nil)
}

func TestDriverWorkerEndToEndIngestsAResult(t *testing.T) {
	fleet := transport.NewInMemoryFleet(2)
	dctx := testContext(t, time.Hour)
	l := buildLoop(t, fleet[0], dctx, []int{1})

	w := worker.New(worker.Config{Rank: 1, DriverRank: 0, WorkDir: t.TempDir()}, &problem.NonSeparable{}, l.schema, fleet[1], dctx, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Run(ctx)
	}()

	for i := 0; i < 20; i++ {
		require.NoError(t, l.Tick(ctx))
		if l.finished.Size() > 0 {
			break
		}
	}

	assert.Greater(t, l.finished.Size(), 0, "driver must have ingested at least one worker result")
	_, _, hasBest := l.BestSoFar()
	assert.True(t, hasBest)

	cancel()
	<-workerDone
}

func TestReplenishRespectsPendingSizeTarget(t *testing.T) {
	dctx := testContext(t, time.Hour)
	l := buildLoop(t, nil, dctx, nil)

	l.replenish()
	assert.LessOrEqual(t, l.pending.Size(), l.cfg.PendingSize())
	assert.Greater(t, l.pending.Size(), 0)
}

func TestDrainFlushesEveryQueue(t *testing.T) {
	dctx := testContext(t, time.Hour)
	l := buildLoop(t, nil, dctx, nil)
	l.replenish()
	assert.NoError(t, l.drain())
}
