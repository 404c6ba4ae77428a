// Package partition implements the sample partition phase (C7): using the
// cut-points chosen by distributed quickselect, it redistributes each
// rank's local array to the rank that owns each element's bucket
// (SPEC_FULL.md §4.7).
package partition

import (
	"github.com/oblivsort/orshuffle/internal/element"
	"github.com/oblivsort/orshuffle/internal/orerrors"
	"github.com/oblivsort/orshuffle/internal/transport"
)

// defaultBufSize is the default bound, in elements, on each message in
// flight per peer in both directions (SamplePartitionBuf, SPEC_FULL.md §6).
const defaultBufSize = 512

// Run redistributes src (this rank's local array) according to cutIdxs, a
// slice of length ch.Size()+1 with cutIdxs[0] == 0 and cutIdxs[len-1] ==
// len(src): elements src[cutIdxs[p]:cutIdxs[p+1]] belong to peer p. It
// returns this rank's destination partition: the concatenation, across all
// peers q, of the slice each q sends this rank.
//
// dstLen is the exact number of elements this rank's destination partition
// holds, its own bucket included (ceil(L*(r+1)/N) - ceil(L*r/N), per
// SPEC_FULL.md §4.7). Run keeps a receive posted until dstLen elements are
// held, and returns an error if the final count differs from dstLen.
func Run(ch transport.Channel, src []element.Element, cutIdxs []int, codec element.Codec, dstLen int, bufSize int) ([]element.Element, error) {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	rank := ch.Rank()
	n := ch.Size()

	if n == 1 {
		// N=1 special case: straight copy, no transport (SPEC_FULL.md
		// §4.7).
		out := make([]element.Element, len(src))
		copy(out, src)
		return out, nil
	}

	out := make([]element.Element, 0, dstLen)
	// Copy this rank's own partition directly; no transport needed for
	// the local bucket.
	out = append(out, src[cutIdxs[rank]:cutIdxs[rank+1]]...)

	sends := make([]*peerSend, 0, n-1)
	for p := 0; p < n; p++ {
		if p == rank {
			continue
		}
		sends = append(sends, &peerSend{
			peer: p,
			elems: src[cutIdxs[p]:cutIdxs[p+1]],
		})
	}

	var reqs []*transport.Request
	var reqKind []int // >= 0 = send (index into sends), -1 = recv
	numReceived := len(out)

	postSend := func(s *peerSend) error {
		if s.cursor >= len(s.elems) {
			return nil
		}
		chunk := s.elems[s.cursor:]
		if len(chunk) > bufSize {
			chunk = chunk[:bufSize]
		}
		var buf []byte
		for _, e := range chunk {
			buf = codec.Encode(buf, e)
		}
		req, err := ch.ISend(buf, s.peer, transport.SamplePartitionTag)
		if err != nil {
			return orerrors.Wrap(orerrors.KindTransport, "partition: post send", err)
		}
		s.cursor += len(chunk)
		s.inflight = req
		return nil
	}

	for _, s := range sends {
		if err := postSend(s); err != nil {
			return nil, err
		}
	}

	recvBuf := make([]byte, bufSize*codec.EncodedSize())
	var recvReq *transport.Request
	if numReceived < dstLen {
		req, err := ch.IRecv(recvBuf, transport.AnySource, transport.SamplePartitionTag)
		if err != nil {
			return nil, orerrors.Wrap(orerrors.KindTransport, "partition: post recv", err)
		}
		recvReq = req
	}

	rebuild := func() {
		reqs = reqs[:0]
		reqKind = reqKind[:0]
		for i, s := range sends {
			if s.inflight != nil {
				reqs = append(reqs, s.inflight)
				reqKind = append(reqKind, i)
			}
		}
		if recvReq != nil {
			reqs = append(reqs, recvReq)
			reqKind = append(reqKind, -1)
		}
	}
	rebuild()

	for len(reqs) > 0 {
		idx, status, err := ch.WaitAny(reqs)
		if err != nil {
			return nil, orerrors.Wrap(orerrors.KindTransport, "partition: waitany", err)
		}
		kind := reqKind[idx]
		if kind >= 0 {
			s := sends[kind]
			s.inflight = nil
			if err := postSend(s); err != nil {
				return nil, err
			}
		} else {
			if status.Count%codec.EncodedSize() != 0 {
				return nil, orerrors.Wrap(orerrors.KindProtocol, "partition: recv size", orerrors.ErrWrongMessageSize)
			}
			buf := recvBuf[:status.Count]
			for len(buf) > 0 {
				e, n := codec.Decode(buf)
				out = append(out, e)
				buf = buf[n:]
			}
			numReceived += status.Count / codec.EncodedSize()
			recvReq = nil
			if numReceived < dstLen {
				recvBuf = make([]byte, bufSize*codec.EncodedSize())
				req, err := ch.IRecv(recvBuf, transport.AnySource, transport.SamplePartitionTag)
				if err != nil {
					return nil, orerrors.Wrap(orerrors.KindTransport, "partition: repost recv", err)
				}
				recvReq = req
			}
		}
		rebuild()
	}

	if numReceived != dstLen {
		return nil, orerrors.Newf(orerrors.KindLogic, "partition: received %d elements, expected %d", numReceived, dstLen)
	}
	return out, nil
}

type peerSend struct {
	peer     int
	elems    []element.Element
	cursor   int
	inflight *transport.Request
}
