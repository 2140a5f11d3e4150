package driver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/antoniogi/dabmpi/internal/candidate"
)

// promote snapshots a new best candidate to disk (spec.md §6 "Promoted-best
// artifacts"): an input.best.<ts> side file holding the encoded candidate,
// plus a copy of any configured evaluator artifact from the dispatching
// worker's directory. Grounded on the original SolverDAB.py's promotion
// block (_examples/original_source/src/SolverDAB.py ~line 804), which
// copies fixed VMEC filenames (threed1.tj<rank>, wout_tj<rank>.txt,
// OUTPUT/results.av); here the filenames are a Config list instead of
// hardcoded, since this engine's Problem adapter is pluggable.
func (l *Loop) promote(c *candidate.Candidate, workerRank int) error {
	ts := l.dctx.Now().Format("20060102-150405")

	inputPath := filepath.Join(l.cfg.PromotionDir, "input.best."+ts)
	if err := os.WriteFile(inputPath, []byte(candidate.Encode(c)+"\n"), 0o644); err != nil {
		return fmt.Errorf("driver: write %s: %w", inputPath, err)
	}

	workDir := filepath.Join(l.cfg.WorkerDir(workerRank))
	for _, artifact := range l.cfg.ArtifactFiles {
		src := filepath.Join(workDir, artifact)
		dstName := fmt.Sprintf("%s.best.%s", filepath.Base(artifact), ts)
		dst := filepath.Join(l.cfg.PromotionDir, dstName)
		if err := copyFile(src, dst); err != nil {
			// Promotion I/O failure (spec.md §7): logged, best-so-far stays
			// updated regardless.
			l.dctx.Logger.WithError(err).WithFields(logrus.Fields{
				"artifact": artifact,
				"worker":   workerRank,
			}).Warn("driver: copy promoted artifact failed")
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
