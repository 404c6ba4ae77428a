// Package obliv provides the primitives the obliviousness guarantee rests
// on: a cryptographically strong byte/bit source, and a constant-time
// conditional swap whose memory access pattern and branch structure are
// independent of the swap condition.
package obliv

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Source is a cryptographically strong source of random bytes. RandBytes
// never returns a short read: callers can assume buf is either filled
// completely or an error is returned.
type Source interface {
	RandBytes(buf []byte) error
	RandBit() (bool, error)
	RandUint32() (uint32, error)
}

// cryptoSource draws from crypto/rand directly for all security-sensitive
// randomness (mark coins, ORP IDs) rather than a userspace PRNG.
type cryptoSource struct{}

// System is the production Source, backed by crypto/rand.
var System Source = cryptoSource{}

func (cryptoSource) RandBytes(buf []byte) error {
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Errorf("read random bytes: %w", err)
	}
	return nil
}

func (cryptoSource) RandBit() (bool, error) {
	var b [1]byte
	if err := (cryptoSource{}).RandBytes(b[:]); err != nil {
		return false, err
	}
	return b[0]&1 == 1, nil
}

func (cryptoSource) RandUint32() (uint32, error) {
	var b [4]byte
	if err := (cryptoSource{}).RandBytes(b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// DeterministicSource is a reproducible Source derived from a fixed seed via
// HKDF, used by the shuffle tests (including SPEC_FULL.md §8 S6) so that a
// shuffle run can be replayed without touching the process's CSPRNG state.
// It is never used as the production Source.
type DeterministicSource struct {
	stream io.Reader
}

// NewDeterministicSource derives an HKDF stream from seed, grounded on the
// teacher's use of hkdf.New for directory-key derivation
// (pkg/core/crypto/encryption.go).
func NewDeterministicSource(seed []byte) *DeterministicSource {
	kdf := hkdf.New(sha3.New256, seed, nil, []byte("orshuffle-deterministic-rng"))
	return &DeterministicSource{stream: kdf}
}

func (d *DeterministicSource) RandBytes(buf []byte) error {
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return fmt.Errorf("read deterministic stream: %w", err)
	}
	return nil
}

func (d *DeterministicSource) RandBit() (bool, error) {
	var b [1]byte
	if err := d.RandBytes(b[:]); err != nil {
		return false, err
	}
	return b[0]&1 == 1, nil
}

func (d *DeterministicSource) RandUint32() (uint32, error) {
	var b [4]byte
	if err := d.RandBytes(b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}
