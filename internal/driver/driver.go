// Package driver implements DriverLoop (spec.md §4.4): the replenish /
// dispatch / ingest / deadline-check tick that owns the three
// SolutionQueues and the agent population, and never blocks on a receive.
// Grounded on the teacher's scheduler tick shape (pkg/scheduler/scheduler.go:
// a single-threaded loop that drains completion channels each pass) and the
// admission/selection algorithm of the original SolverDAB.py
// (_examples/original_source/src/SolverDAB.py), adapted from its
// MPI Irecv/Test/Wait calls to the transport.Transport abstraction.
package driver

import (
	"context"
	"fmt"

	"github.com/antoniogi/dabmpi/internal/agent"
	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/metrics"
	"github.com/antoniogi/dabmpi/internal/probmatrix"
	"github.com/antoniogi/dabmpi/internal/problem"
	"github.com/antoniogi/dabmpi/internal/queue"
	"github.com/antoniogi/dabmpi/internal/schema"
	"github.com/antoniogi/dabmpi/internal/transport"
)

// Config carries the run-wide knobs the driver needs beyond what's already
// folded into the three queues and the agent population.
type Config struct {
	WorkerRanks       []int
	Sources           int    // diversity admission parameter for elite/finished Put calls
	PromotionDir      string // directory input.best.<ts> and artifact copies land in
	WorkDirPrefix     string // parent of each worker's rank-numbered directory
	ArtifactFiles     []string
	PendingSizeTarget int // target pending-queue depth (spec.md §6 Algorithm.pendingSize)
}

// WorkerDir returns worker rank r's exclusively-owned directory (spec.md
// §5).
func (c Config) WorkerDir(r int) string {
	return fmt.Sprintf("%s/%d", c.WorkDirPrefix, r)
}

// Loop is the driver's run-loop state (spec.md §4.4 "Held state").
type Loop struct {
	cfg    Config
	schema *schema.ParameterSchema
	tr     transport.Transport
	dctx   *dabcontext.Context

	agents []*agent.Agent

	pending  *queue.Queue
	finished *queue.Queue
	elite    *queue.Queue
	pm       *probmatrix.Matrix

	metrics *metrics.Registry

	awaitingRequest []*transport.Pending
	awaitingResult  []*transport.Pending
	endSimPending   []*transport.Pending
	endSimReceived  []bool

	replenishCursor int

	bestSoFar   *candidate.Candidate
	bestFitness float64
	hasBest     bool
}

// New builds a Loop and arms the initial awaitingRequest receive for every
// worker (each worker's first action is to send a REQINPUT probe).
func New(cfg Config, s *schema.ParameterSchema, tr transport.Transport, dctx *dabcontext.Context, agents []*agent.Agent, pending, finished, elite *queue.Queue, pm *probmatrix.Matrix, m *metrics.Registry) *Loop {
	n := len(cfg.WorkerRanks)
	l := &Loop{
		cfg: cfg, schema: s, tr: tr, dctx: dctx, agents: agents,
		pending: pending, finished: finished, elite: elite, pm: pm, metrics: m,
		awaitingRequest: make([]*transport.Pending, n),
		awaitingResult:  make([]*transport.Pending, n),
		endSimPending:   make([]*transport.Pending, n),
		endSimReceived:  make([]bool, n),
	}
	for i, rank := range cfg.WorkerRanks {
		l.awaitingRequest[i] = tr.PostRecv(rank, transport.ReqInput)
		l.endSimPending[i] = tr.PostRecv(rank, transport.EndSim)
	}
	return l
}

// BestSoFar reports the best candidate and fitness observed so far, if any.
func (l *Loop) BestSoFar() (*candidate.Candidate, float64, bool) {
	return l.bestSoFar, l.bestFitness, l.hasBest
}

// Run drives ticks until every worker's ENDSIM has arrived (or the
// deadline is overrun with no margin left), then flushes the queues
// (spec.md §4.6 Draining -> Done) and returns.
func (l *Loop) Run(ctx context.Context) error {
	for !l.finishedRunning() {
		if err := l.Tick(ctx); err != nil {
			l.dctx.Logger.WithError(err).Warn("driver: tick failed, continuing")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return l.drain()
}

func (l *Loop) finishedRunning() bool {
	if l.dctx.Overrun() {
		return true
	}
	if !l.dctx.WindingDown() {
		return false
	}
	for _, got := range l.endSimReceived {
		if !got {
			return false
		}
	}
	return true
}

// drain flushes every durable queue, matching spec.md §6's "top.queue is
// rewritten in full on shutdown".
func (l *Loop) drain() error {
	var firstErr error
	for _, q := range []*queue.Queue{l.pending, l.finished, l.elite} {
		if err := q.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Tick runs the four numbered steps of spec.md §4.4 once.
func (l *Loop) Tick(ctx context.Context) error {
	ctx, span := l.dctx.Tracer.Start(ctx, "driver.tick")
	defer span.End()

	l.replenish()
	if err := l.dispatch(ctx); err != nil {
		return err
	}
	if err := l.ingest(ctx); err != nil {
		return err
	}
	l.drainEndSim()
	return nil
}

// replenish implements spec.md §4.4 step 1. Agent order is deterministic
// (index order) across calls via replenishCursor, matching the tie-break
// rule spec.md §4.4 names.
func (l *Loop) replenish() {
	for l.pending.Size() < l.cfg.PendingSize() {
		if len(l.agents) == 0 {
			break
		}
		a := l.agents[l.replenishCursor%len(l.agents)]
		l.replenishCursor++
		cand, origin := a.Propose(l.dctx, l.pm, l.elite)
		if cand == nil {
			cand = candidate.Random(l.schema, l.dctx.Rand)
			origin = -1
		}
		_ = l.pending.Put(cand, queue.NotEvaluated, origin, l.cfg.Sources)
	}

	for _, a := range l.agents {
		if fresh, abandoned := a.MaybeAbandon(l.dctx); abandoned {
			_ = l.pending.Put(fresh, queue.NotEvaluated, a.ID, l.cfg.Sources)
		}
	}
}

// PendingSize reports the pendingSize target spec.md §4.4 step 1
// replenishes toward.
func (c Config) PendingSize() int { return c.PendingSizeTarget }

// dispatch implements spec.md §4.4 step 2.
func (l *Loop) dispatch(ctx context.Context) error {
	for i, rank := range l.cfg.WorkerRanks {
		_, _, ready := l.tr.TestAny([]*transport.Pending{l.awaitingRequest[i]})
		if !ready {
			continue
		}

		cand, _, origin, ok := l.pending.Get(true)
		if !ok {
			l.replenish()
			cand, _, origin, ok = l.pending.Get(true)
		}
		if !ok {
			cand = candidate.Random(l.schema, l.dctx.Rand)
			origin = -1
		}

		if err := l.tr.Send(ctx, rank, transport.Message{Tag: transport.RecvFromDriver, Vector: transport.ToWire(cand)}); err != nil {
			return fmt.Errorf("driver: send vector to rank %d: %w", rank, err)
		}
		if err := l.tr.Send(ctx, rank, transport.Message{Tag: transport.RecvFromDriver, Int: int64(origin)}); err != nil {
			return fmt.Errorf("driver: send originId to rank %d: %w", rank, err)
		}

		l.awaitingRequest[i] = l.tr.PostRecv(rank, transport.ReqInput)
		l.awaitingResult[i] = l.tr.PostRecv(rank, transport.ReqSendInput)
		if l.metrics != nil {
			l.metrics.CandidatesDispatched.Inc()
		}
	}
	return nil
}

// ingest implements spec.md §4.4 step 3.
func (l *Loop) ingest(ctx context.Context) error {
	for i, rank := range l.cfg.WorkerRanks {
		if l.awaitingResult[i] == nil {
			continue
		}
		_, _, ready := l.tr.TestAny([]*transport.Pending{l.awaitingResult[i]})
		if !ready {
			continue
		}
		l.awaitingResult[i] = nil

		vecMsg, err := l.tr.Recv(ctx, rank, transport.CommSolution)
		if err != nil {
			return fmt.Errorf("driver: recv result vector from rank %d: %w", rank, err)
		}
		fitMsg, err := l.tr.Recv(ctx, rank, transport.CommSolution)
		if err != nil {
			return fmt.Errorf("driver: recv result fitness from rank %d: %w", rank, err)
		}
		idMsg, err := l.tr.Recv(ctx, rank, transport.CommSolution)
		if err != nil {
			return fmt.Errorf("driver: recv result originId from rank %d: %w", rank, err)
		}

		cand := transport.FromWire(l.schema, vecMsg.Vector)
		l.processResult(cand, fitMsg.Float, int(idMsg.Int), rank)
	}
	return nil
}

// processResult is the bulk of spec.md §4.4 step 3.
func (l *Loop) processResult(cand *candidate.Candidate, fitness float64, origin, workerRank int) {
	if !problem.Valid(fitness) {
		if l.metrics != nil {
			l.metrics.InvalidFitness.Inc()
		}
		l.noteOrigin(origin, func(a *agent.Agent) { a.NoteInvalid() })
		return
	}

	if l.metrics != nil {
		l.metrics.CandidatesIngested.Inc()
	}
	cand.Fitness = &fitness
	_ = l.finished.Put(cand, fitness, origin, l.cfg.Sources)
	_ = l.elite.Put(cand, fitness, origin, l.cfg.Sources)
	if l.metrics != nil {
		l.metrics.QueueSize.WithLabelValues("finished").Set(float64(l.finished.Size()))
		l.metrics.QueueSize.WithLabelValues("elite").Set(float64(l.elite.Size()))
		l.metrics.QueueSize.WithLabelValues("pending").Set(float64(l.pending.Size()))
	}

	isNewBest := !l.hasBest || l.dctx.Objective.Better(fitness, l.bestFitness)
	if l.pm != nil {
		l.pm.Update(cand, isNewBest)
	}
	if isNewBest {
		l.bestSoFar = cand
		l.bestFitness = fitness
		l.hasBest = true
		if l.metrics != nil {
			l.metrics.BestFitness.Set(fitness)
		}
		if err := l.promote(cand, workerRank); err != nil {
			l.dctx.Logger.WithError(err).Warn("driver: promote best failed")
		}
	}

	l.noteOrigin(origin, func(a *agent.Agent) { a.NoteResult(l.dctx, cand, fitness) })
}

func (l *Loop) noteOrigin(origin int, f func(*agent.Agent)) {
	for _, a := range l.agents {
		if a.ID == origin && a.Kind == agent.Employed {
			f(a)
			return
		}
	}
}

// drainEndSim records any ENDSIM notices that have arrived; it does not
// block and does not re-arm a slot once its ENDSIM has fired.
func (l *Loop) drainEndSim() {
	for i := range l.cfg.WorkerRanks {
		if l.endSimReceived[i] || l.endSimPending[i] == nil {
			continue
		}
		if _, _, ready := l.tr.TestAny([]*transport.Pending{l.endSimPending[i]}); ready {
			l.endSimReceived[i] = true
			l.endSimPending[i] = nil
		}
	}
}
