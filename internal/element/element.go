// Package element defines the fixed-size record sorted and shuffled by the
// rest of this module, and its wire encoding.
package element

import "encoding/binary"

// Element is a fixed-size record: a total-order key, a random tiebreak
// assigned after the shuffle phase, and opaque payload bytes. All
// comparisons use the lexicographic pair (Key, ORPID); equal pairs are
// tolerated (negligible-probability ORPID collisions compare equal).
type Element struct {
	Key     uint64
	ORPID   uint64
	Payload []byte
}

// HeaderSize is the encoded size of the Key and ORPID fields, before the
// payload.
const HeaderSize = 16

// Size returns the total encoded size of e, including its payload.
func (e Element) Size() int {
	return HeaderSize + len(e.Payload)
}

// Less reports whether e sorts strictly before other under the (Key, ORPID)
// comparator.
func (e Element) Less(other Element) bool {
	if e.Key != other.Key {
		return e.Key < other.Key
	}
	return e.ORPID < other.ORPID
}

// Compare returns -1, 0 or 1 as e is less than, equal to, or greater than
// other under the (Key, ORPID) comparator. Both components are always
// evaluated; the array is already shuffled by the time this runs, so
// equal-key leakage through branch timing is not a concern here (see C8 in
// SPEC_FULL.md).
func Compare(a, b Element) int {
	keyCmp, orpCmp := 0, 0
	switch {
	case a.Key < b.Key:
		keyCmp = -1
	case a.Key > b.Key:
		keyCmp = 1
	}
	switch {
	case a.ORPID < b.ORPID:
		orpCmp = -1
	case a.ORPID > b.ORPID:
		orpCmp = 1
	}
	if keyCmp != 0 {
		return keyCmp
	}
	return orpCmp
}

// Equal reports whether a and b carry the same (Key, ORPID) pair.
func Equal(a, b Element) bool {
	return a.Key == b.Key && a.ORPID == b.ORPID
}

// PayloadLen is the fixed payload width used for one sort job; every
// Element decoded by Decode carries a payload of this length.
type Codec struct {
	PayloadLen int
}

// EncodedSize is the fixed per-element wire size for this codec.
func (c Codec) EncodedSize() int {
	return HeaderSize + c.PayloadLen
}

// Encode appends the wire encoding of e to dst and returns the extended
// slice. The payload must have length c.PayloadLen.
func (c Codec) Encode(dst []byte, e Element) []byte {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], e.Key)
	binary.LittleEndian.PutUint64(hdr[8:16], e.ORPID)
	dst = append(dst, hdr[:]...)
	dst = append(dst, e.Payload...)
	return dst
}

// Decode reads one element from the front of buf and returns it along with
// the number of bytes consumed. buf must hold at least EncodedSize bytes.
func (c Codec) Decode(buf []byte) (Element, int) {
	n := c.EncodedSize()
	e := Element{
		Key:     binary.LittleEndian.Uint64(buf[0:8]),
		ORPID:   binary.LittleEndian.Uint64(buf[8:16]),
		Payload: append([]byte(nil), buf[HeaderSize:n]...),
	}
	return e, n
}
