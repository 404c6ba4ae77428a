// Package compaction implements the oblivious compaction engine (C4): given
// a power-of-two array and a mark bit per element, it moves all marked
// elements into a contiguous cyclic block at a caller-chosen rotation,
// touching every cell on every call regardless of which cells are marked
// (SPEC_FULL.md §4.4). This is the core the ORShuffle driver recurses on.
package compaction

import "github.com/oblivsort/orshuffle/internal/obliv"

// Compact permutes a[0:length] in place so that the `sum(marked)` marked
// elements occupy a contiguous cyclic block starting at index
// `offset mod length`, and the unmarked elements occupy the complement.
// prefix must be a valid running sum of marked: prefix[i] == prefix[i-1] +
// marked[i], with prefix[length-1] == sum(marked). length must be a power
// of two. elemSize is the byte width of one element; a and marked/prefix
// index the same length.
func Compact(a []byte, elemSize int, marked []uint8, prefix []int, length, offset int) {
	if length < 2 {
		return
	}
	if length == 2 {
		cond := (marked[0] == 0 && marked[1] != 0) != (offset&1 != 0)
		obliv.OSwap(a[0:elemSize], a[elemSize:2*elemSize], cond)
		return
	}

	half := length / 2
	leftMarked := prefix[half-1] - prefix[0] + int(marked[0])

	Compact(a[:half*elemSize], elemSize, marked[:half], prefix[:half], half, offset%half)
	Compact(a[half*elemSize:length*elemSize], elemSize, marked[half:], prefix[half:], half, (offset+leftMarked)%half)

	swapLocalRange(a[:length*elemSize], elemSize, length, offset, leftMarked)
}

// swapLocalRange merges two already-compacted halves of a length-2L range
// into a single cyclic block, per SPEC_FULL.md §4.4. Both the swap
// condition and the swap itself are evaluated for every i, with no
// data-dependent branch on the condition's value.
func swapLocalRange(a []byte, elemSize, length, offset, leftMarked int) {
	l := length / 2
	// Go has no boolean XOR operator; != on two bools is exactly that.
	s := ((offset%l)+leftMarked >= l) != (offset >= l)

	cut := (offset + leftMarked) % l
	for i := 0; i < l; i++ {
		cond := s != (i >= cut)
		obliv.OSwap(a[i*elemSize:(i+1)*elemSize], a[(i+l)*elemSize:(i+l+1)*elemSize], cond)
	}
}
