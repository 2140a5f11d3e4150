package transport

import (
	"context"
	"encoding/gob"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// TCP is the real multi-process DRIVERWORKER backend: each rank listens on
// its configured address and dials every peer whose rank is lower than
// its own, so exactly one connection exists per pair. Each connection runs
// a background gob-decoding reader goroutine that delivers into the local
// mailbox, the same fan-in shape as the teacher's MessageRouter inbound
// queue (pkg/p2p/messaging/message_router.go), generalized from a
// protocol-ID keyed queue to the (source rank, tag) mailbox here.
type TCP struct {
	rank int
	size int
	log  *logrus.Entry

	box *mailbox

	mu    sync.Mutex
	conns map[int]*gob.Encoder
	raw   map[int]net.Conn

	listener net.Listener
}

// DialTCP starts rank's listener on listenAddr, connects to every lower
// rank's address in peers, and accepts connections from higher ranks. It
// blocks until all size-1 peer connections exist.
func DialTCP(ctx context.Context, rank int, listenAddr string, peers []string, log *logrus.Entry) (*TCP, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	t := &TCP{
		rank:  rank,
		size:  len(peers),
		log:   log,
		box:   newMailbox(),
		conns: make(map[int]*gob.Encoder),
		raw:   make(map[int]net.Conn),
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on %s: %w", listenAddr, err)
	}
	t.listener = ln

	var wg sync.WaitGroup
	acceptErr := make(chan error, 1)
	higher := t.size - rank - 1
	if higher > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < higher; i++ {
				conn, err := ln.Accept()
				if err != nil {
					select {
					case acceptErr <- err:
					default:
					}
					return
				}
				t.adopt(conn)
			}
		}()
	}

	for r := 0; r < rank; r++ {
		conn, err := net.Dial("tcp", peers[r])
		if err != nil {
			return nil, fmt.Errorf("transport: dial rank %d at %s: %w", r, peers[r], err)
		}
		t.adopt(conn)
	}

	wg.Wait()
	select {
	case err := <-acceptErr:
		return nil, fmt.Errorf("transport: accept peer connection: %w", err)
	default:
	}
	return t, nil
}

// handshake is exchanged once per connection so each side learns which
// rank is on the other end of it.
type handshake struct{ Rank int }

func (t *TCP) adopt(conn net.Conn) {
	enc := gob.NewEncoder(conn)
	dec := gob.NewDecoder(conn)

	if err := enc.Encode(handshake{Rank: t.rank}); err != nil {
		conn.Close()
		return
	}
	var peerHello handshake
	if err := dec.Decode(&peerHello); err != nil {
		conn.Close()
		return
	}

	t.mu.Lock()
	t.conns[peerHello.Rank] = enc
	t.raw[peerHello.Rank] = conn
	t.mu.Unlock()

	go t.readLoop(peerHello.Rank, dec)
}

func (t *TCP) readLoop(peerRank int, dec *gob.Decoder) {
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			t.log.WithError(err).WithField("peer", peerRank).Warn("transport: peer connection closed")
			return
		}
		msg.From = peerRank
		t.box.deliver(msg)
	}
}

func (t *TCP) Rank() int { return t.rank }
func (t *TCP) Size() int { return t.size }

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.raw {
		c.Close()
	}
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

func (t *TCP) Send(ctx context.Context, to int, msg Message) error {
	t.mu.Lock()
	enc, ok := t.conns[to]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no connection to rank %d", to)
	}
	msg.From = t.rank
	done := make(chan error, 1)
	go func() { done <- enc.Encode(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *TCP) PostRecv(from int, tag Tag) *Pending { return t.box.postRecv(from, tag) }

func (t *TCP) TestAny(pending []*Pending) (Message, *Pending, bool) { return t.box.testAny(pending) }

func (t *TCP) Recv(ctx context.Context, from int, tag Tag) (Message, error) {
	return t.box.recvCtx(ctx, from, tag)
}

func (t *TCP) Broadcast(ctx context.Context, msg Message) error {
	t.mu.Lock()
	targets := make([]int, 0, len(t.conns))
	for r := range t.conns {
		targets = append(targets, r)
	}
	t.mu.Unlock()
	for _, r := range targets {
		if err := t.Send(ctx, r, msg); err != nil {
			return err
		}
	}
	return nil
}
