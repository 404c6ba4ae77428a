// Package orerrors defines the error taxonomy shared by every phase of the
// shuffle-sort pipeline: allocation, RNG, transport, protocol and logic
// failures, each wrapped with the offending operation's context while
// retaining a classifiable kind.
package orerrors

import (
	"errors"
	"fmt"
)

// Kind classifies why a phase failed.
type Kind int

const (
	// KindNone indicates no error.
	KindNone Kind = iota
	// KindAllocation covers out-of-memory conditions.
	KindAllocation
	// KindRNG covers entropy-source failures.
	KindRNG
	// KindTransport covers any non-OK send/recv/wait from the transport
	// facade.
	KindTransport
	// KindProtocol covers coordination-protocol violations: all ranks
	// report empty in quickselect, or a message arrives with the wrong
	// size.
	KindProtocol
	// KindLogic covers internal assertion failures (e.g. a received byte
	// count that does not match the expected element count). These are
	// not expected to occur outside of a bug and are treated as fatal by
	// callers.
	KindLogic
)

func (k Kind) String() string {
	switch k {
	case KindAllocation:
		return "allocation"
	case KindRNG:
		return "rng"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindLogic:
		return "logic"
	default:
		return "none"
	}
}

// kindError is the concrete error type produced by Wrap. It keeps the
// original cause reachable via Unwrap so errors.Is/errors.As continue to
// work against underlying sentinel or library errors.
type kindError struct {
	kind Kind
	op   string
	err  error
}

func (e *kindError) Error() string {
	if e.op == "" {
		return fmt.Sprintf("%s: %v", e.kind, e.err)
	}
	return fmt.Sprintf("%s: %s: %v", e.kind, e.op, e.err)
}

func (e *kindError) Unwrap() error { return e.err }

// Wrap annotates err with kind and the operation that produced it. Wrap
// returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, op: op, err: err}
}

// Newf creates a new error of the given kind from a format string.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind attached to err via Wrap/Newf, or KindNone if err
// does not carry one.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindNone
}

// Sentinel errors used by protocol-level checks (§7 Protocol failure).
var (
	// ErrAllRanksEmpty is returned by quickselect's master election when
	// every rank reports an empty active slice.
	ErrAllRanksEmpty = errors.New("all ranks empty")
	// ErrWrongMessageSize is returned when a received message's byte
	// count is not a whole multiple of the element encoding size.
	ErrWrongMessageSize = errors.New("message size is not a multiple of element size")
	// ErrUnsupportedVariant is returned by the top-level sort dispatch for
	// sort variants that share the transport and thread pool but are not
	// implemented by this module (bitonic, bucket, Opaque — see
	// SPEC_FULL.md §9 Out-of-scope-variants).
	ErrUnsupportedVariant = errors.New("unsupported sort variant")
)
