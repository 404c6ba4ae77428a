package transport

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// message is one undelivered payload sitting in a destination's mailbox,
// waiting for a matching Recv/IRecv.
type message struct {
	src  int
	tag  uint16
	data []byte
}

// result is what a completed operation delivers to its waiter.
type result struct {
	status Status
	err    error
}

// want is a pending receive (blocking or non-blocking) registered against a
// destination rank's mailbox, to be satisfied by a future Send/ISend that
// matches its (peer, tag) criteria.
type want struct {
	id      RequestID
	peer    int // AnySource wildcard permitted
	tag     uint16
	buf     []byte
	done    chan result
}

// Hub is the shared in-process switchboard for a Loopback transport: every
// rank's Channel routes through the same Hub, so Send on one rank's channel
// can deliver directly into another rank's mailbox or pending want.
type Hub struct {
	size int

	mu      sync.Mutex
	inbox   [][]message // inbox[dst] = FIFO of undelivered messages
	pending [][]*want   // pending[dst] = outstanding Recv/IRecv wants
}

// NewHub creates a Hub wiring together `size` in-process ranks.
func NewHub(size int) *Hub {
	return &Hub{
		size:    size,
		inbox:   make([][]message, size),
		pending: make([][]*want, size),
	}
}

// Channel returns the Channel facade for rank r. Each rank must use only
// its own Channel.
func (h *Hub) Channel(rank int) Channel {
	return &loopbackChannel{hub: h, rank: rank}
}

func matches(m message, peer int, tag uint16) bool {
	if peer != AnySource && m.src != peer {
		return false
	}
	if tag != AnyTag && m.tag != tag {
		return false
	}
	return true
}

// deliver routes data from srcRank to dstRank under tag: it satisfies the
// oldest matching pending want if one exists, otherwise queues the message
// in the destination's mailbox. h.mu must not be held by the caller.
func (h *Hub) deliver(srcRank, dstRank int, tag uint16, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	wants := h.pending[dstRank]
	for i, w := range wants {
		if peerMatchesWant(w.peer, srcRank) && tagMatchesWant(w.tag, tag) {
			h.pending[dstRank] = append(wants[:i:i], wants[i+1:]...)
			n := copy(w.buf, data)
			w.done <- result{status: Status{Source: srcRank, Tag: tag, Count: n}}
			return
		}
	}
	h.inbox[dstRank] = append(h.inbox[dstRank], message{src: srcRank, tag: tag, data: data})
}

func peerMatchesWant(wantPeer, src int) bool { return wantPeer == AnySource || wantPeer == src }
func tagMatchesWant(wantTag, tag uint16) bool { return wantTag == AnyTag || wantTag == tag }

// tryRecv attempts to satisfy a receive immediately from the destination's
// mailbox. It returns ok=false if no message currently matches.
func (h *Hub) tryRecv(dstRank, peer int, tag uint16, buf []byte) (Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.inbox[dstRank]
	for i, m := range msgs {
		if matches(m, peer, tag) {
			h.inbox[dstRank] = append(msgs[:i:i], msgs[i+1:]...)
			n := copy(buf, m.data)
			return Status{Source: m.src, Tag: m.tag, Count: n}, true
		}
	}
	return Status{}, false
}

// registerWant satisfies w at once from dstRank's mailbox if a matching
// message arrived after the caller's tryRecv; otherwise it enqueues w as a
// pending receive, to be satisfied by a future deliver call.
func (h *Hub) registerWant(dstRank int, w *want) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.inbox[dstRank]
	for i, m := range msgs {
		if matches(m, w.peer, w.tag) {
			h.inbox[dstRank] = append(msgs[:i:i], msgs[i+1:]...)
			n := copy(w.buf, m.data)
			w.done <- result{status: Status{Source: m.src, Tag: m.tag, Count: n}}
			return
		}
	}
	h.pending[dstRank] = append(h.pending[dstRank], w)
}

// loopbackChannel is the Channel implementation backed by a shared Hub,
// used by the CLI driver's local simulation mode and by this module's
// tests (SPEC_FULL.md names the real encrypted transport as an external
// collaborator; this is its in-process stand-in).
type loopbackChannel struct {
	hub  *Hub
	rank int
}

func (c *loopbackChannel) Rank() int { return c.rank }
func (c *loopbackChannel) Size() int { return c.hub.size }

func (c *loopbackChannel) Send(buf []byte, peer int, tag uint16) error {
	if peer < 0 || peer >= c.hub.size {
		return fmt.Errorf("transport: send to out-of-range peer %d", peer)
	}
	cp := append([]byte(nil), buf...)
	c.hub.deliver(c.rank, peer, tag, cp)
	return nil
}

func (c *loopbackChannel) Recv(buf []byte, peer int, tag uint16) (Status, error) {
	if status, ok := c.hub.tryRecv(c.rank, peer, tag, buf); ok {
		return status, nil
	}
	done := make(chan result, 1)
	c.hub.registerWant(c.rank, &want{id: uuid.New(), peer: peer, tag: tag, buf: buf, done: done})
	r := <-done
	return r.status, r.err
}

func (c *loopbackChannel) ISend(buf []byte, peer int, tag uint16) (*Request, error) {
	if err := c.Send(buf, peer, tag); err != nil {
		return nil, err
	}
	// Loopback delivery is synchronous, but the request must still surface
	// through WaitAny like any other completion so callers pumping a
	// WaitAny loop see it finish and move on to their next chunk.
	done := make(chan result, 1)
	done <- result{}
	return &Request{id: uuid.New(), done: done}, nil
}

func (c *loopbackChannel) IRecv(buf []byte, peer int, tag uint16) (*Request, error) {
	id := uuid.New()
	if status, ok := c.hub.tryRecv(c.rank, peer, tag, buf); ok {
		done := make(chan result, 1)
		done <- result{status: status}
		return &Request{id: id, done: done}, nil
	}
	done := make(chan result, 1)
	c.hub.registerWant(c.rank, &want{id: id, peer: peer, tag: tag, buf: buf, done: done})
	return &Request{id: id, done: done}, nil
}

func (c *loopbackChannel) WaitAny(reqs []*Request) (int, Status, error) {
	var cases []reflect.SelectCase
	var indices []int
	for i, r := range reqs {
		if r == nil || r.done == nil {
			continue
		}
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(r.done)})
		indices = append(indices, i)
	}
	if len(cases) == 0 {
		return -1, Status{}, fmt.Errorf("transport: WaitAny called with no pending requests")
	}
	chosen, recv, _ := reflect.Select(cases)
	idx := indices[chosen]
	res := recv.Interface().(result)
	reqs[idx].done = nil // consume: completed requests must not be reused
	return idx, res.status, res.err
}
