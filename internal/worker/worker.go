// Package worker implements WorkerLoop (spec.md §4.5): a tight
// request/compute/reply cycle, blocking on exactly two receives per
// iteration (spec.md §5), run from cmd/dab for every non-driver rank in
// DRIVERWORKER mode. Grounded on the teacher's worker-side goroutine loop
// shape in pkg/scheduler (pull a unit of work, run it, report back), with
// the pull/report steps replaced by the tagged transport exchange spec.md
// §4.5/§6 specify.
package worker

import (
	"context"
	"fmt"

	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/metrics"
	"github.com/antoniogi/dabmpi/internal/problem"
	"github.com/antoniogi/dabmpi/internal/schema"
	"github.com/antoniogi/dabmpi/internal/transport"
)

// Config carries the per-worker identity spec.md §5 describes: each rank
// owns its own working directory exclusively.
type Config struct {
	Rank       int
	DriverRank int
	WorkDir    string
}

// Loop is one worker's run-loop state (spec.md §4.5 "Held state").
type Loop struct {
	cfg     Config
	problem problem.Problem
	schema  *schema.ParameterSchema
	tr      transport.Transport
	dctx    *dabcontext.Context
	metrics *metrics.Registry
}

func New(cfg Config, p problem.Problem, s *schema.ParameterSchema, tr transport.Transport, dctx *dabcontext.Context, m *metrics.Registry) *Loop {
	return &Loop{cfg: cfg, problem: p, schema: s, tr: tr, dctx: dctx, metrics: m}
}

// Run drives the worker until it sends its ENDSIM notice, at which point
// it returns nil. A tick's own error is logged and swallowed (spec.md §7:
// propagation policy) — only ctx cancellation returns an error here; a
// failed ENDSIM send is logged like any other tick error and the loop
// goes on.
func (l *Loop) Run(ctx context.Context) error {
	for {
		done, err := l.tick(ctx)
		if err != nil {
			l.dctx.Logger.WithError(err).WithField("rank", l.cfg.Rank).Warn("worker: tick failed, continuing")
		}
		if done {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// tick runs the five numbered steps of spec.md §4.5 once. done reports
// whether this worker has sent ENDSIM and should stop looping.
func (l *Loop) tick(ctx context.Context) (done bool, err error) {
	ctx, span := l.dctx.Tracer.Start(ctx, "worker.tick")
	defer span.End()

	// 1. Send a 1-int REQINPUT to the driver.
	if err := l.tr.Send(ctx, l.cfg.DriverRank, transport.Message{Tag: transport.ReqInput, Int: 1}); err != nil {
		return false, fmt.Errorf("worker: send REQINPUT: %w", err)
	}

	// 2. Blocking-receive the value vector, then the originId.
	vecMsg, err := l.tr.Recv(ctx, l.cfg.DriverRank, transport.RecvFromDriver)
	if err != nil {
		return false, fmt.Errorf("worker: recv vector: %w", err)
	}
	idMsg, err := l.tr.Recv(ctx, l.cfg.DriverRank, transport.RecvFromDriver)
	if err != nil {
		return false, fmt.Errorf("worker: recv originId: %w", err)
	}
	originID := int(idMsg.Int)

	// 3. Build a Candidate, solve it.
	cand := transport.FromWire(l.schema, vecMsg.Vector)
	fitness, solveErr := l.problem.Solve(ctx, cand, l.cfg.WorkDir)
	outcome := "ok"
	if solveErr != nil {
		l.dctx.Logger.WithError(solveErr).WithField("rank", l.cfg.Rank).Warn("worker: evaluator failed")
		fitness = -1
		outcome = "error"
	} else if !problem.Valid(fitness) {
		outcome = "invalid"
	}
	if l.metrics != nil {
		l.metrics.WorkerEvaluations.WithLabelValues(outcome).Inc()
	}
	cand.Fitness = &fitness

	// 4. Send the ready notice, then the three result payloads.
	if err := l.tr.Send(ctx, l.cfg.DriverRank, transport.Message{Tag: transport.ReqSendInput, Int: 1}); err != nil {
		return false, fmt.Errorf("worker: send REQSENDINPUT: %w", err)
	}
	if err := l.tr.Send(ctx, l.cfg.DriverRank, transport.Message{Tag: transport.CommSolution, Vector: transport.ToWire(cand)}); err != nil {
		return false, fmt.Errorf("worker: send result vector: %w", err)
	}
	if err := l.tr.Send(ctx, l.cfg.DriverRank, transport.Message{Tag: transport.CommSolution, Float: fitness}); err != nil {
		return false, fmt.Errorf("worker: send result fitness: %w", err)
	}
	if err := l.tr.Send(ctx, l.cfg.DriverRank, transport.Message{Tag: transport.CommSolution, Int: int64(originID)}); err != nil {
		return false, fmt.Errorf("worker: send result originId: %w", err)
	}

	// 5. Wind down once the deadline's safety margin has been reached.
	if l.dctx.WindingDown() {
		if err := l.tr.Send(ctx, l.cfg.DriverRank, transport.Message{Tag: transport.EndSim, Int: 1}); err != nil {
			return false, fmt.Errorf("worker: send ENDSIM: %w", err)
		}
		return true, nil
	}
	return false, nil
}
