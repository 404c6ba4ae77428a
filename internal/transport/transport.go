// Package transport defines the facade this module consumes for
// point-to-point communication between ranks (SPEC_FULL.md §4.3). The
// actual encrypted, authenticated channel is an external collaborator
// (SPEC_FULL.md §1 Out of scope); this package only specifies the contract
// and provides an in-process Loopback implementation used by the CLI
// driver's local simulation mode and by every test in this module.
package transport

import "github.com/google/uuid"

// AnySource is the wildcard peer for Recv/IRecv: match a message from any
// sender.
const AnySource = -1

// AnyTag is the wildcard tag for Recv/IRecv: match a message with any tag.
const AnyTag uint16 = 0xffff

// Status reports the outcome of a completed receive.
type Status struct {
	Source int // the peer the message actually arrived from
	Tag    uint16
	Count  int // bytes actually received; may be <= cap(buf)
}

// RequestID identifies one in-flight non-blocking operation. Grounded on the
// teacher's surrounding IPFS/libp2p stack, which identifies in-flight
// operations by UUID rather than a bare integer handle.
type RequestID = uuid.UUID

// Request is a handle to a pending non-blocking send or receive. A Request
// that has completed via WaitAny is consumed and must not be reused.
type Request struct {
	id   RequestID
	done chan result
}

// Channel is the tagged, reliable, in-order point-to-point transport this
// module consumes. Messages sent to the same (peer, tag) pair from one
// sender are delivered to that receiver in send order (SPEC_FULL.md §4.3).
type Channel interface {
	// Rank returns this channel's own rank number.
	Rank() int
	// Size returns the total number of ranks in the job.
	Size() int

	// Send blocks until buf has been handed to peer under tag.
	Send(buf []byte, peer int, tag uint16) error
	// Recv blocks until a message matching (peer, tag) — AnySource/AnyTag
	// wildcards permitted — has been copied into buf, and reports how many
	// bytes were written.
	Recv(buf []byte, peer int, tag uint16) (Status, error)

	// ISend starts a non-blocking send of buf to peer under tag. The
	// Channel implementation owns buf until the returned Request
	// completes via WaitAny.
	ISend(buf []byte, peer int, tag uint16) (*Request, error)
	// IRecv starts a non-blocking receive into buf, matching (peer, tag)
	// with wildcards permitted.
	IRecv(buf []byte, peer int, tag uint16) (*Request, error)

	// WaitAny blocks until exactly one of reqs has completed, returning
	// its index and (for a receive) its Status. The completed request is
	// consumed; reqs[idx] must not be reused. Entries that are nil are
	// skipped.
	WaitAny(reqs []*Request) (idx int, status Status, err error)
}

// Reserved tags owned by this module's core (SPEC_FULL.md §6).
const (
	QuickselectTag      uint16 = 0xfe00
	SamplePartitionTag  uint16 = 0xfe01
)
