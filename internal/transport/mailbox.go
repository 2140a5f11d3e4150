package transport

import (
	"context"
	"fmt"
	"sync"
)

// mailbox is the shared receive-side bookkeeping every backend (inmemory,
// tcp, libp2p) builds on: a per (from, tag) buffered channel that a
// reader goroutine (or, for inmemory, the peer's own Send) delivers into,
// and that PostRecv/TestAny/Recv consume from. Grounded on the teacher's
// pkg/scheduler/task_queue.go buffered-channel-per-key shape.
type mailbox struct {
	mu    sync.Mutex
	slots map[key]chan Message
}

type key struct {
	from int
	tag  Tag
}

func newMailbox() *mailbox {
	return &mailbox{slots: make(map[key]chan Message)}
}

func (m *mailbox) slot(from int, tag Tag) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{from, tag}
	ch, ok := m.slots[k]
	if !ok {
		ch = make(chan Message, 1)
		m.slots[k] = ch
	}
	return ch
}

// deliver is called by a reader goroutine (tcp/libp2p) or directly by a
// peer's Send (inmemory) to place an incoming message into its slot. A
// slot holds one message: deliver blocks while the slot is full, until the
// receiver consumes the earlier message. This happens in normal operation,
// since the driver sends its two RecvFromDriver messages, and the worker
// its three CommSolution messages, back to back on one slot.
func (m *mailbox) deliver(msg Message) {
	m.slot(msg.From, msg.Tag) <- msg
}

func (m *mailbox) postRecv(from int, tag Tag) *Pending {
	return &Pending{from: from, tag: tag, ch: m.slot(from, tag)}
}

func (m *mailbox) testAny(pending []*Pending) (Message, *Pending, bool) {
	for _, p := range pending {
		select {
		case msg := <-p.ch:
			return msg, p, true
		default:
		}
	}
	return Message{}, nil, false
}

func (m *mailbox) recvCtx(ctx context.Context, from int, tag Tag) (Message, error) {
	select {
	case msg := <-m.slot(from, tag):
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (k key) String() string { return fmt.Sprintf("(%d,%s)", k.from, k.tag) }
