package mergesort

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/oblivsort/orshuffle/internal/element"
	"github.com/oblivsort/orshuffle/internal/threadpool"
)

func isSorted(elems []element.Element) bool {
	for i := 1; i < len(elems); i++ {
		if element.Compare(elems[i-1], elems[i]) > 0 {
			return false
		}
	}
	return true
}

func TestSortSmallExactMultipleOfFanout(t *testing.T) {
	pool := threadpool.Open(4)
	defer pool.Close()

	elems := make([]element.Element, 8)
	for i := range elems {
		elems[i] = element.Element{Key: uint64(7 - i)}
	}
	scratch := make([]element.Element, 8)
	Sort(pool, elems, scratch, 4)

	if !isSorted(elems) {
		t.Fatalf("not sorted: %+v", elems)
	}
}

func TestSortLargeRandomMultiplePasses(t *testing.T) {
	pool := threadpool.Open(4)
	defer pool.Close()

	rng := rand.New(rand.NewSource(42))
	n := 10000
	elems := make([]element.Element, n)
	for i := range elems {
		elems[i] = element.Element{Key: rng.Uint64() % 1000, ORPID: uint64(i)}
	}
	want := append([]element.Element(nil), elems...)
	sort.Slice(want, func(a, b int) bool { return element.Compare(want[a], want[b]) < 0 })

	scratch := make([]element.Element, n)
	Sort(pool, elems, scratch, 8)

	if !isSorted(elems) {
		t.Fatal("output is not sorted")
	}
	for i := range elems {
		if !element.Equal(elems[i], want[i]) {
			t.Fatalf("mismatch at index %d: got %+v, want %+v", i, elems[i], want[i])
		}
	}
}

func TestSortHandlesLengthsSmallerThanTwo(t *testing.T) {
	pool := threadpool.Open(2)
	defer pool.Close()

	empty := []element.Element{}
	Sort(pool, empty, empty, 4)

	one := []element.Element{{Key: 1}}
	oneScratch := make([]element.Element, 1)
	Sort(pool, one, oneScratch, 4)
	if one[0].Key != 1 {
		t.Fatal("single-element sort mutated the element")
	}
}

func TestSortNonMultipleLengthOddRemainder(t *testing.T) {
	pool := threadpool.Open(3)
	defer pool.Close()

	n := 37
	elems := make([]element.Element, n)
	for i := range elems {
		elems[i] = element.Element{Key: uint64(n - i)}
	}
	scratch := make([]element.Element, n)
	Sort(pool, elems, scratch, 4)

	if !isSorted(elems) {
		t.Fatalf("not sorted: %+v", elems)
	}
	if len(elems) != n {
		t.Fatalf("length changed: got %d, want %d", len(elems), n)
	}
}
