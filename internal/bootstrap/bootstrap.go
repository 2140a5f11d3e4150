// Package bootstrap stages per-rank working directories from a previously
// recorded finished queue, so a batch of candidates can be re-evaluated
// offline (e.g. to re-run the external evaluator on the best-looking
// solutions from a finished run without going through the driver/worker
// loop again). Grounded on the original extra/bootstrap.py
// (_examples/original_source/src/extra/bootstrap.py), which reads
// finished.queue, writes one "bootstrap/<i>/input.tj0" per solution and
// submits a PBS job per directory; the PBS submission step is
// environment-specific and out of scope here, but the directory-staging
// and input-file generation is kept.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/queue"
	"github.com/antoniogi/dabmpi/internal/schema"
)

const stagedInputFile = "input.tj0"

// Stage reads queuePath (a finished.queue-style file) and writes one
// directory per valid-fitness entry under baseDir, each containing the
// entry's encoded candidate as an evaluator input file. It returns the
// number of directories staged. Entries with an invalid fitness
// (spec.md §7 evaluator-invalid-result) are skipped, matching the
// original's `if (solValue<0.0): continue`.
func Stage(queuePath string, s *schema.ParameterSchema, obj dabcontext.Objective, baseDir string) (int, error) {
	q, err := queue.New(queue.Config{Filename: queuePath, MaxSize: 1 << 30, Mode: queue.Priority, Persist: true}, s, obj)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: load %s: %w", queuePath, err)
	}
	defer q.Close()

	entries := q.All()
	staged := 0
	for i, e := range entries {
		if e.Fitness < 0 {
			continue
		}
		c, err := candidate.Decode(s, e.Encoded)
		if err != nil {
			// Queue corruption (spec.md §7): skip the bad entry, keep staging
			// the rest.
			continue
		}
		dir := filepath.Join(baseDir, fmt.Sprintf("%d", i))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return staged, fmt.Errorf("bootstrap: create %s: %w", dir, err)
		}
		inputPath := filepath.Join(dir, stagedInputFile)
		if err := os.WriteFile(inputPath, []byte(candidate.Encode(c)+"\n"), 0o644); err != nil {
			return staged, fmt.Errorf("bootstrap: write %s: %w", inputPath, err)
		}
		staged++
	}
	return staged, nil
}
