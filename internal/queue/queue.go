// Package queue implements the SolutionQueue from spec.md §4.1: an ordered
// container of (candidate, fitness, originId) triples, running in either
// FIFO mode (the pending queue) or priority mode (finished, elite), bounded
// in size and optionally durable on disk.
//
// Grounded on the teacher's pkg/scheduler/task_queue.go (config struct,
// mutex-guarded state, metrics-friendly Size/Enqueue/Dequeue shape) and on
// the admission/diversity algorithm of the original dabmpi
// SolutionsQueue.PutSolution (_examples/original_source/src/SolutionsQueue.py),
// which spec.md §9 names as authoritative over the older duplicate file.
package queue

import (
	"fmt"
	"sync"

	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/schema"
)

// Mode selects FIFO (pending queue) or priority (finished, elite) ordering.
type Mode int

const (
	FIFO Mode = iota
	Priority
)

// NotEvaluated is the fitness sentinel for "not yet evaluated" entries
// (spec.md §3 QueueEntry).
const NotEvaluated = -1.0

// Entry is a QueueEntry (spec.md §3): an encoded candidate, its fitness (or
// NotEvaluated) and the id of the agent that produced it (-1 for a scout
// fallback).
type Entry struct {
	Encoded string
	Fitness float64
	Origin  int
}

func valid(fitness float64) bool { return fitness >= 0.0 }

// Config configures a SolutionQueue (spec.md §4.1).
type Config struct {
	Filename string
	MaxSize  int
	Persist  bool
	Mode     Mode
	// DefaultSources is the diversity admission parameter used when a
	// caller doesn't pass an explicit sources value to Put.
	DefaultSources int
}

// Queue is a SolutionQueue instance. The zero value is not usable; build
// one with New.
type Queue struct {
	mu      sync.Mutex
	cfg     Config
	schema  *schema.ParameterSchema
	obj     dabcontext.Objective
	entries []Entry
	appendF appendWriter
}

// appendWriter is the minimal file interface the queue needs for its
// append-mode durability, kept as an interface so tests can substitute an
// in-memory writer instead of touching disk.
type appendWriter interface {
	WriteLine(line string) error
	Close() error
}

// New constructs a Queue. If cfg.Persist is set and the backing file
// already exists, it is loaded (spec.md §4.1 "load(): if the backing file
// exists, reconstruct the queue").
func New(cfg Config, s *schema.ParameterSchema, obj dabcontext.Objective) (*Queue, error) {
	if cfg.DefaultSources <= 0 {
		cfg.DefaultSources = 3
	}
	q := &Queue{cfg: cfg, schema: s, obj: obj}
	if cfg.Persist && cfg.Filename != "" {
		if err := q.Load(); err != nil {
			return nil, fmt.Errorf("queue %s: initial load: %w", cfg.Filename, err)
		}
		w, err := newFileAppendWriter(cfg.Filename)
		if err != nil {
			return nil, fmt.Errorf("queue %s: open append handle: %w", cfg.Filename, err)
		}
		q.appendF = w
	}
	return q, nil
}

// Close releases the backing file handle, if any.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.appendF != nil {
		return q.appendF.Close()
	}
	return nil
}

// Size returns the number of entries currently held.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Put inserts (candidate, fitness, originId) per spec.md §4.1. sources is
// the diversity admission threshold: an entry that finds no insertion point
// is appended at the tail only while fewer than sources distinct origins
// are represented.
func (q *Queue) Put(c *candidate.Candidate, fitness float64, origin int, sources int) error {
	if c == nil {
		return fmt.Errorf("queue: nil candidate")
	}
	encoded := candidate.Encode(c)
	entry := Entry{Encoded: encoded, Fitness: fitness, Origin: origin}

	q.mu.Lock()
	if q.cfg.Mode == FIFO {
		if len(q.entries) < q.cfg.MaxSize {
			q.entries = append(q.entries, entry)
		}
	} else {
		q.putPriorityLocked(entry, sources)
	}
	q.mu.Unlock()

	if q.cfg.Persist && q.appendF != nil {
		line := fmt.Sprintf("%s#%s#%d", encoded, formatFitness(fitness), origin)
		return q.appendF.WriteLine(line)
	}
	return nil
}

// putPriorityLocked implements spec.md §4.1 rules (a)-(d). Callers must
// hold q.mu.
func (q *Queue) putPriorityLocked(entry Entry, sources int) {
	if sources <= 0 {
		sources = q.cfg.DefaultSources
	}
	origins := make(map[int]bool)
	inserted := false
	threshold := q.cfg.MaxSize / 10

	for i := 0; i < len(q.entries); i++ {
		cur := q.entries[i]
		origins[cur.Origin] = true

		// Rule (a): a not-yet-evaluated entry never preempts a real entry —
		// i.e. it never counts as "better", so insertion is always attempted
		// against it. Tie-break among equal, valid fitnesses is FIFO
		// (spec.md §9 Open Question): an existing entry with fitness equal
		// to the new one is treated as already better, so it is not displaced.
		if valid(cur.Fitness) {
			if q.obj == dabcontext.Maximize && cur.Fitness >= entry.Fitness {
				continue
			}
			if q.obj == dabcontext.Minimize && cur.Fitness <= entry.Fitness {
				continue
			}
		}

		// Rule (b): diversity guard over the first MaxSize/10 positions.
		if i > threshold && len(origins) <= 1 && origins[entry.Origin] {
			break
		}

		q.entries = append(q.entries, Entry{})
		copy(q.entries[i+1:], q.entries[i:])
		q.entries[i] = entry
		inserted = true
		break
	}

	// Rule (d): no insertion point found. While fewer than `sources`
	// distinct origins are represented, the entry is appended whatever its
	// origin. If the queue is already full and the entry's origin is not
	// represented yet, the worst-positioned entry of an origin holding more
	// than one slot is evicted first, so the new origin gets a place. For an
	// already-represented origin the original source's eviction loop is
	// unreachable as written (a `for i in range(qSize()-1, 0)` that never
	// iterates), so the entry is appended if room remains, else it is a
	// no-op: rule (c)'s tail trim below drops the just-appended entry again.
	if !inserted && len(origins) < sources {
		if len(q.entries) >= q.cfg.MaxSize && !origins[entry.Origin] {
			counts := make(map[int]int)
			for _, e := range q.entries {
				counts[e.Origin]++
			}
			for j := len(q.entries) - 1; j >= 0; j-- {
				if counts[q.entries[j].Origin] > 1 {
					q.entries = append(q.entries[:j], q.entries[j+1:]...)
					break
				}
			}
		}
		q.entries = append(q.entries, entry)
	}

	// Rule (c): enforce MaxSize by dropping the worst tail entry.
	if len(q.entries) > q.cfg.MaxSize {
		q.entries = q.entries[:len(q.entries)-1]
	}
}

// Get returns the front entry as (candidate, fitness, origin, ok). When
// remove is true it behaves as a regular dequeue; when false it is Peek.
func (q *Queue) Get(remove bool) (*candidate.Candidate, float64, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, 0, 0, false
	}
	entry := q.entries[0]
	if remove {
		q.entries = q.entries[1:]
	}
	c, err := candidate.Decode(q.schema, entry.Encoded)
	if err != nil {
		// Queue corruption (spec.md §7): report empty rather than propagating
		// a decode error into the driver/worker loop. With remove the bad line
		// has been dropped above; a peek leaves it in place.
		return nil, 0, 0, false
	}
	return c, entry.Fitness, entry.Origin, true
}

// Peek returns the front entry without removing it.
func (q *Queue) Peek() (*candidate.Candidate, float64, int, bool) {
	return q.Get(false)
}

// TotalFitnessMass returns Σ fitness (maximize) or Σ 1/fitness (minimize)
// over all valid entries (spec.md §4.1), used as the denominator for
// fitness-proportional roulette selection.
func (q *Queue) TotalFitnessMass() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0.0
	for _, e := range q.entries {
		if !valid(e.Fitness) || e.Fitness == 0 {
			continue
		}
		total += q.obj.Mass(e.Fitness)
	}
	return total
}

// PickByRoulette walks entries accumulating w_i = mass(fitness_i) and
// returns the first entry whose running sum exceeds r (spec.md §4.1). It
// reports ok=false if no entry is reachable (e.g. the queue is empty or r
// exceeds the total mass).
func (q *Queue) PickByRoulette(r float64) (*candidate.Candidate, float64, int, bool) {
	q.mu.Lock()
	running := 0.0
	var picked *Entry
	for i := range q.entries {
		e := q.entries[i]
		if !valid(e.Fitness) || e.Fitness == 0 {
			continue
		}
		running += q.obj.Mass(e.Fitness)
		if running > r {
			picked = &q.entries[i]
			break
		}
	}
	q.mu.Unlock()

	if picked == nil {
		return nil, 0, 0, false
	}
	c, err := candidate.Decode(q.schema, picked.Encoded)
	if err != nil {
		return nil, 0, 0, false
	}
	return c, picked.Fitness, picked.Origin, true
}

// All returns a snapshot copy of the queue's entries, best-first in
// priority mode. Intended for tests and for Flush.
func (q *Queue) All() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

func formatFitness(f float64) string {
	return fmt.Sprintf("%g", f)
}
