package driver

import (
	"context"

	"github.com/antoniogi/dabmpi/internal/problem"
)

// RunLocal drives the loop in ALL2ALL mode (spec.md §5): every rank runs
// the driver algorithm against its own in-process problem evaluation, so
// dispatch/ingest collapse into a direct call instead of a transport round
// trip. rank and workDir identify this process for promotion bookkeeping;
// workDir is this rank's exclusive scratch directory, same as a worker's
// in DRIVERWORKER mode.
func (l *Loop) RunLocal(ctx context.Context, p problem.Problem, rank int, workDir string) error {
	for !l.dctx.Overrun() {
		tickCtx, span := l.dctx.Tracer.Start(ctx, "driver.tick.local")
		l.replenish()

		cand, _, origin, ok := l.pending.Get(true)
		if ok {
			fitness, err := p.Solve(tickCtx, cand, workDir)
			if err != nil {
				l.dctx.Logger.WithError(err).Warn("driver: local evaluator failed")
				fitness = -1
			}
			l.processResult(cand, fitness, origin, rank)
		}

		span.End()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return l.drain()
}
