// Package transport implements the point-to-point, tagged-channel
// messaging abstraction from spec.md §2 C8 / §5 / §6: non-blocking send,
// posted receives with a completion-test primitive, and a broadcast for
// the final barrier. DriverLoop never blocks on receive (it polls posted
// slots with TestAny); WorkerLoop blocks on exactly two receives per
// iteration (spec.md §5).
//
// Grounded on the teacher's pkg/p2p/messaging (tagged message routing) and
// pkg/scheduler/task_queue.go (channel-backed, non-blocking-first queue
// shape), generalized from "route by protocol/peer" to "route by
// (source rank, tag)".
package transport

import "context"

// Tag distinguishes the six message channels spec.md §6 names.
type Tag int

const (
	ReqInput       Tag = iota // worker -> driver: "I'm ready for a candidate"
	RecvFromDriver            // driver -> worker: value vector, then originId
	ReqSendInput              // worker -> driver: "result follows"
	CommSolution              // worker -> driver: value vector, fitness, originId
	EndSim                    // worker -> driver: this worker is done
	RecvFromWorker            // reserved: generic driver-side worker-origin channel, unused by this flow
)

func (t Tag) String() string {
	switch t {
	case ReqInput:
		return "REQINPUT"
	case RecvFromDriver:
		return "RECVFROMDRIVER"
	case ReqSendInput:
		return "REQSENDINPUT"
	case CommSolution:
		return "COMMSOLUTION"
	case EndSim:
		return "ENDSIM"
	case RecvFromWorker:
		return "RECVFROMWORKER"
	default:
		return "UNKNOWN"
	}
}

// Message is the generic envelope exchanged over a Transport. Not every
// field is populated by every tag: ReqInput/ReqSendInput/EndSim carry only
// a single int probe value (spec.md §4.5 "a 1-int ... notice"); RecvFromDriver
// carries either a value vector or a single originId int, sent as two
// separate messages; CommSolution carries a value vector, a fitness and an
// originId across three messages.
type Message struct {
	From   int
	Tag    Tag
	Int    int64
	Float  float64
	Vector []float64
}

// Pending is a handle to a posted (armed) non-blocking receive. It must be
// polled through the Transport's TestAny; it is not independently
// readable.
type Pending struct {
	from int
	tag  Tag
	ch   chan Message
}

// Transport is the messaging boundary the driver and worker loops use.
// Implementations: InMemory (tests, and every rank of a fleet inside one
// process; ALL2ALL mode uses no transport), TCP (real multi-process
// DRIVERWORKER deployment) and LibP2P (an
// alternate DRIVERWORKER backend over a libp2p host, for fleets that span
// machines without a shared process launcher).
type Transport interface {
	Rank() int
	Size() int
	Close() error

	// Send delivers msg to rank `to`. Spec.md §5: sends are small and
	// expected not to stall; the driver may block briefly on them but
	// never blocks waiting on a receive.
	Send(ctx context.Context, to int, msg Message) error

	// PostRecv arms a non-blocking receive for (from, tag). Exactly one
	// PostRecv should be outstanding per (from, tag) pair at a time — the
	// driver re-arms it immediately after consuming a completed receive
	// (spec.md §5's "post its receive for a worker's result before that
	// worker can have finished sending it").
	PostRecv(from int, tag Tag) *Pending

	// TestAny returns the first pending receive in the set that has a
	// message ready, without blocking. ok is false if none are ready yet.
	TestAny(pending []*Pending) (msg Message, which *Pending, ok bool)

	// Recv blocks until (from, tag) has a message. WorkerLoop uses this
	// for its two per-iteration blocking receives (spec.md §5).
	Recv(ctx context.Context, from int, tag Tag) (Message, error)

	// Broadcast sends msg to every rank other than this one — used for the
	// final barrier (spec.md §2 C8).
	Broadcast(ctx context.Context, msg Message) error
}
