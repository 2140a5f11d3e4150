package transport

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

// dabProtocol is the single stream protocol every rank speaks; the whole
// Message envelope (including its Tag) travels inside it, so there is no
// need for the per-topic protocol fan-out the teacher's P2PHost supports
// (pkg/p2p/host/host.go's RegisterProtocol/protocols map) — DAB's topology
// is a closed, known-size fleet, not an open pubsub mesh.
const dabProtocol protocol.ID = "/dab/1.0.0"

// LibP2P is an alternate DRIVERWORKER backend for fleets spread across
// machines without a shared process launcher or pre-opened TCP ports: each
// rank runs a libp2p host and opens one long-lived stream per peer,
// addressed by peer.ID rather than by host:port. Grounded on the teacher's
// pkg/p2p/host/host.go (libp2p.New options, SetStreamHandler) and
// pkg/p2p/node.go's Node interface shape, narrowed from that package's
// full NAT/relay/security surface to the one stream protocol DAB needs.
type LibP2P struct {
	rank int
	size int
	log  *logrus.Entry
	host host.Host
	box  *mailbox

	mu      sync.Mutex
	streams map[int]network.Stream
	enc     map[int]*gob.Encoder
}

// RankAddr pairs a rank with the multiaddr (including /p2p/<peerID>) its
// host listens on.
type RankAddr struct {
	Rank int
	Addr string
}

// NewLibP2P starts a libp2p host for rank, listening on listenAddr, and
// connects to every peer in peers whose rank is lower than this one
// (matching TCP, where each rank dials the lower ranks, so exactly one
// stream exists per pair).
func NewLibP2P(ctx context.Context, rank int, listenAddr string, peers []RankAddr, log *logrus.Entry) (*LibP2P, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		return nil, fmt.Errorf("transport: start libp2p host: %w", err)
	}

	t := &LibP2P{
		rank:    rank,
		size:    len(peers) + 1,
		log:     log,
		host:    h,
		box:     newMailbox(),
		streams: make(map[int]network.Stream),
		enc:     make(map[int]*gob.Encoder),
	}

	h.SetStreamHandler(dabProtocol, func(s network.Stream) {
		t.adopt(-1, s) // peer rank is learned from the handshake, not the stream
	})

	for _, p := range peers {
		if p.Rank >= rank {
			continue
		}
		maddr, err := multiaddr.NewMultiaddr(p.Addr)
		if err != nil {
			return nil, fmt.Errorf("transport: parse peer address %q: %w", p.Addr, err)
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return nil, fmt.Errorf("transport: parse peer info from %q: %w", p.Addr, err)
		}
		if err := h.Connect(ctx, *info); err != nil {
			return nil, fmt.Errorf("transport: connect to rank %d: %w", p.Rank, err)
		}
		s, err := h.NewStream(ctx, info.ID, dabProtocol)
		if err != nil {
			return nil, fmt.Errorf("transport: open stream to rank %d: %w", p.Rank, err)
		}
		t.adopt(p.Rank, s)
	}

	return t, nil
}

func (t *LibP2P) adopt(knownRank int, s network.Stream) {
	// Encode writes straight to the stream (no buffering to flush); decode
	// reads through a bufio.Reader to cut down on small-read syscalls.
	enc := gob.NewEncoder(s)
	dec := gob.NewDecoder(bufio.NewReader(s))

	if err := enc.Encode(handshake{Rank: t.rank}); err != nil {
		s.Close()
		return
	}
	peerRank := knownRank
	if peerRank < 0 {
		var hello handshake
		if err := dec.Decode(&hello); err != nil {
			s.Close()
			return
		}
		peerRank = hello.Rank
	}

	t.mu.Lock()
	t.streams[peerRank] = s
	t.enc[peerRank] = enc
	t.mu.Unlock()

	go t.readLoop(peerRank, dec)
}

func (t *LibP2P) readLoop(peerRank int, dec *gob.Decoder) {
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			t.log.WithError(err).WithField("peer", peerRank).Warn("transport: libp2p stream closed")
			return
		}
		msg.From = peerRank
		t.box.deliver(msg)
	}
}

func (t *LibP2P) Rank() int { return t.rank }
func (t *LibP2P) Size() int { return t.size }

func (t *LibP2P) Close() error {
	t.mu.Lock()
	for _, s := range t.streams {
		s.Close()
	}
	t.mu.Unlock()
	return t.host.Close()
}

func (t *LibP2P) Send(ctx context.Context, to int, msg Message) error {
	t.mu.Lock()
	enc, ok := t.enc[to]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no libp2p stream to rank %d", to)
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

func (t *LibP2P) PostRecv(from int, tag Tag) *Pending { return t.box.postRecv(from, tag) }

func (t *LibP2P) TestAny(pending []*Pending) (Message, *Pending, bool) {
	return t.box.testAny(pending)
}

func (t *LibP2P) Recv(ctx context.Context, from int, tag Tag) (Message, error) {
	return t.box.recvCtx(ctx, from, tag)
}

func (t *LibP2P) Broadcast(ctx context.Context, msg Message) error {
	t.mu.Lock()
	targets := make([]int, 0, len(t.enc))
	for r := range t.enc {
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
