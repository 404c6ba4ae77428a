package compaction

import "testing"

func encodeInts(vals []int) []byte {
	buf := make([]byte, len(vals))
	for i, v := range vals {
		buf[i] = byte(v)
	}
	return buf
}

func TestCompactLengthTwoMovesMarkedElementToOffsetZero(t *testing.T) {
	// marked = [0, 1]: element 1 is marked but sits second. At offset 0 the
	// marked block must start at index 0, so a swap is required.
	a := encodeInts([]int{10, 20})
	marked := []uint8{0, 1}
	prefix := []int{0, 1}
	Compact(a, 1, marked, prefix, 2, 0)
	if a[0] != 20 || a[1] != 10 {
		t.Fatalf("expected swap, got %v", a)
	}
}

func TestCompactLengthTwoAlreadyInPlaceIsNoOp(t *testing.T) {
	// marked = [1, 0]: the marked element already sits at offset 0, so no
	// swap should occur.
	a := encodeInts([]int{10, 20})
	marked := []uint8{1, 0}
	prefix := []int{1, 1}
	Compact(a, 1, marked, prefix, 2, 0)
	if a[0] != 10 || a[1] != 20 {
		t.Fatalf("expected no swap, got %v", a)
	}
}

func TestCompactGroupsMarkedElementsContiguously(t *testing.T) {
	// length 8, mark every even index.
	vals := []int{0, 1, 2, 3, 4, 5, 6, 7}
	marked := []uint8{1, 0, 1, 0, 1, 0, 1, 0}
	prefix := make([]int, len(marked))
	sum := 0
	for i, m := range marked {
		sum += int(m)
		prefix[i] = sum
	}
	a := encodeInts(vals)
	Compact(a, 1, marked, prefix, 8, 0)

	markedCount := 0
	for _, m := range marked {
		markedCount += int(m)
	}
	markedVals := map[byte]bool{0: true, 2: true, 4: true, 6: true}

	// The markedCount marked original values must occupy indices
	// [0, markedCount) in some order (cyclic offset 0), and the rest must
	// occupy the complement.
	for i := 0; i < markedCount; i++ {
		if !markedVals[a[i]] {
			t.Fatalf("index %d holds %d, expected a marked original value; full array %v", i, a[i], a)
		}
	}
	for i := markedCount; i < 8; i++ {
		if markedVals[a[i]] {
			t.Fatalf("index %d holds %d, expected an unmarked original value; full array %v", i, a[i], a)
		}
	}
}

func TestCompactIsPermutation(t *testing.T) {
	vals := []int{1, 2, 3, 4, 5, 6, 7, 8}
	marked := []uint8{0, 1, 1, 0, 0, 0, 1, 1}
	prefix := make([]int, len(marked))
	sum := 0
	for i, m := range marked {
		sum += int(m)
		prefix[i] = sum
	}
	a := encodeInts(vals)
	Compact(a, 1, marked, prefix, 8, 3)

	seen := make(map[byte]bool)
	for _, v := range a {
		if seen[v] {
			t.Fatalf("value %d appeared twice in output %v", v, a)
		}
		seen[v] = true
	}
	for _, v := range vals {
		if !seen[byte(v)] {
			t.Fatalf("value %d missing from output %v", v, a)
		}
	}
}

func TestCompactLengthFourMarkedPairAtOffsetZero(t *testing.T) {
	// Identity input [0,1,2,3] with {0,2} marked, offset 0. The correctness
	// invariant only requires the marked multiset {0,2} to occupy a
	// contiguous cyclic block starting at offset 0 and the unmarked
	// multiset {1,3} to occupy the complement; it does not require either
	// group to keep its original relative order.
	vals := []int{0, 1, 2, 3}
	marked := []uint8{1, 0, 1, 0}
	prefix := make([]int, len(marked))
	sum := 0
	for i, m := range marked {
		sum += int(m)
		prefix[i] = sum
	}
	a := encodeInts(vals)
	Compact(a, 1, marked, prefix, 4, 0)

	markedVals := map[byte]bool{0: true, 2: true}
	for i := 0; i < 2; i++ {
		if !markedVals[a[i]] {
			t.Fatalf("index %d holds %d, expected a marked value from {0,2}; full array %v", i, a[i], a)
		}
	}
	for i := 2; i < 4; i++ {
		if markedVals[a[i]] {
			t.Fatalf("index %d holds %d, expected an unmarked value; full array %v", i, a[i], a)
		}
	}
}

func TestCompactShortCircuitsLengthOne(t *testing.T) {
	a := encodeInts([]int{42})
	Compact(a, 1, []uint8{0}, []int{0}, 1, 0)
	if a[0] != 42 {
		t.Fatalf("length-1 compact must be a no-op, got %v", a)
	}
}
