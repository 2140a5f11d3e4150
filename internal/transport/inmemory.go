package transport

import (
	"context"
	"fmt"
)

// InMemory is a Transport backend that connects every rank's mailbox
// directly within a single process: Send on one peer delivers straight
// into the target peer's mailbox, with no encoding step. It exists for
// driver/worker unit tests and for running every rank of a small fleet
// inside one process during development, grounded on the teacher's
// channel-based task queue rather than any real networking code.
type InMemory struct {
	rank  int
	peers []*mailbox // indexed by rank; peers[rank] is this rank's own inbox
}

// NewInMemoryFleet builds n connected InMemory transports, one per rank.
func NewInMemoryFleet(n int) []*InMemory {
	boxes := make([]*mailbox, n)
	for i := range boxes {
		boxes[i] = newMailbox()
	}
	fleet := make([]*InMemory, n)
	for i := range fleet {
		fleet[i] = &InMemory{rank: i, peers: boxes}
	}
	return fleet
}

func (t *InMemory) Rank() int { return t.rank }
func (t *InMemory) Size() int { return len(t.peers) }
func (t *InMemory) Close() error { return nil }

func (t *InMemory) Send(ctx context.Context, to int, msg Message) error {
	if to < 0 || to >= len(t.peers) {
		return fmt.Errorf("transport: rank %d out of range [0,%d)", to, len(t.peers))
	}
	msg.From = t.rank
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	t.peers[to].deliver(msg)
	return nil
}

func (t *InMemory) PostRecv(from int, tag Tag) *Pending {
	return t.peers[t.rank].postRecv(from, tag)
}

func (t *InMemory) TestAny(pending []*Pending) (Message, *Pending, bool) {
	return t.peers[t.rank].testAny(pending)
}

func (t *InMemory) Recv(ctx context.Context, from int, tag Tag) (Message, error) {
	return t.peers[t.rank].recvCtx(ctx, from, tag)
}

func (t *InMemory) Broadcast(ctx context.Context, msg Message) error {
	for r := range t.peers {
		if r == t.rank {
			continue
		}
		if err := t.Send(ctx, r, msg); err != nil {
			return err
		}
	}
	return nil
}
