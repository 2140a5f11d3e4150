package queue

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/antoniogi/dabmpi/internal/dabcontext"
)

// fileAppendWriter is a thin os.File wrapper satisfying appendWriter. Kept
// separate from Queue so tests can substitute an in-memory implementation
// without touching disk (spec.md §4.1 treats the backing file as an
// append-mode exact history).
type fileAppendWriter struct {
	f *os.File
}

func newFileAppendWriter(path string) (*fileAppendWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileAppendWriter{f: f}, nil
}

func (w *fileAppendWriter) WriteLine(line string) error {
	_, err := w.f.WriteString(line + "\n")
	return err
}

func (w *fileAppendWriter) Close() error {
	return w.f.Close()
}

// Load reconstructs the queue from its backing file, if it exists
// (spec.md §4.1). In priority mode, entries are inserted preserving
// objective order; malformed lines are skipped without logging (queue
// corruption, spec.md §7) rather than aborting the whole load.
func (q *Queue) Load() error {
	if q.cfg.Filename == "" {
		return nil
	}
	f, err := os.Open(q.cfg.Filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("queue: open %s: %w", q.cfg.Filename, err)
	}
	defer f.Close()

	q.mu.Lock()
	defer q.mu.Unlock()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			// Malformed line: queue corruption, skip and keep loading
			// (spec.md §7 — the queue remains usable).
			continue
		}
		if q.cfg.Mode == FIFO {
			q.entries = append(q.entries, entry)
			continue
		}
		q.insertOrderedLocked(entry)
	}
	return scanner.Err()
}

// insertOrderedLocked inserts entry preserving objective-better-first order,
// without the diversity/admission constraints Put applies — Load
// reconstructs previously-accepted state, it does not re-run admission
// control over it. Callers must hold q.mu.
func (q *Queue) insertOrderedLocked(entry Entry) {
	for i, cur := range q.entries {
		if valid(cur.Fitness) {
			if q.obj == dabcontext.Maximize && cur.Fitness >= entry.Fitness {
				continue
			}
			if q.obj == dabcontext.Minimize && cur.Fitness <= entry.Fitness {
				continue
			}
		}
		q.entries = append(q.entries, Entry{})
		copy(q.entries[i+1:], q.entries[i:])
		q.entries[i] = entry
		return
	}
	q.entries = append(q.entries, entry)
	if len(q.entries) > q.cfg.MaxSize && q.cfg.MaxSize > 0 {
		q.entries = q.entries[:q.cfg.MaxSize]
	}
}

func parseLine(line string) (Entry, error) {
	fields := strings.Split(line, "#")
	if len(fields) != 3 {
		return Entry{}, fmt.Errorf("queue: malformed line (want 3 fields, got %d)", len(fields))
	}
	fitness, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("queue: bad fitness field: %w", err)
	}
	origin, err := strconv.Atoi(fields[2])
	if err != nil {
		return Entry{}, fmt.Errorf("queue: bad origin field: %w", err)
	}
	return Entry{Encoded: fields[0], Fitness: fitness, Origin: origin}, nil
}

// Flush writes the whole queue to its backing file as a snapshot,
// replacing any previous content (spec.md §4.1). Unlike the append-mode
// writes Put performs, Flush does not mutate the in-memory queue — it is a
// point-in-time export, used at shutdown to rewrite top.queue in full
// (spec.md §6).
func (q *Queue) Flush() error {
	if q.cfg.Filename == "" {
		return nil
	}
	q.mu.Lock()
	entries := make([]Entry, len(q.entries))
	copy(entries, q.entries)
	q.mu.Unlock()

	f, err := os.Create(q.cfg.Filename)
	if err != nil {
		return fmt.Errorf("queue: flush %s: %w", q.cfg.Filename, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s#%s#%d\n", e.Encoded, formatFitness(e.Fitness), e.Origin); err != nil {
			return fmt.Errorf("queue: flush %s: %w", q.cfg.Filename, err)
		}
	}
	return w.Flush()
}
