// Package mergesort implements the local external merge sort that finishes
// each rank's partition after sample partition (C8, SPEC_FULL.md §4.8): a
// parallel chunked first pass followed by B-way merge passes, growing the
// sorted run length by a factor of B each pass.
package mergesort

import (
	"sort"

	"github.com/oblivsort/orshuffle/internal/element"
	"github.com/oblivsort/orshuffle/internal/threadpool"
)

// DefaultFanout is B, the default chunk size and merge fan-out
// (SPEC_FULL.md §6).
const DefaultFanout = 1024

// Sort sorts elems in place on the (Key, ORPID) comparator using a
// parallel external merge sort dispatched through pool. fanout selects B
// (0 selects DefaultFanout). scratch must have the same length as elems
// and is used as the opposing buffer for merge passes; its contents on
// return are unspecified.
func Sort(pool *threadpool.Pool, elems, scratch []element.Element, fanout int) {
	n := len(elems)
	if n < 2 {
		return
	}
	if fanout <= 0 {
		fanout = DefaultFanout
	}

	firstPass(pool, elems, fanout)

	in, out := elems, scratch
	for runLength := fanout; runLength < n; runLength *= fanout {
		mergePass(pool, in, out, runLength, fanout)
		in, out = out, in
	}

	if &in[0] != &elems[0] {
		copy(elems, in)
	}
}

// firstPass sorts each chunk of up to fanout consecutive elements in place,
// one chunk per iteration so the pool can dispatch chunks across workers.
func firstPass(pool *threadpool.Pool, elems []element.Element, fanout int) {
	n := len(elems)
	numChunks := (n + fanout - 1) / fanout
	item := pool.PushIteration(func(arg interface{}, i int) {
		lo := i * fanout
		hi := lo + fanout
		if hi > n {
			hi = n
		}
		chunk := elems[lo:hi]
		sort.Slice(chunk, func(a, b int) bool {
			return element.Compare(chunk[a], chunk[b]) < 0
		})
	}, nil, numChunks)
	pool.RunUntilEmpty()
	pool.Wait(item)
}

// mergePass B-way-merges up to fanout consecutive runs of up to runLength
// elements each from in into out, one group of fanout runs per iteration.
func mergePass(pool *threadpool.Pool, in, out []element.Element, runLength, fanout int) {
	n := len(in)
	groupSize := runLength * fanout
	numGroups := (n + groupSize - 1) / groupSize
	item := pool.PushIteration(func(arg interface{}, g int) {
		groupLo := g * groupSize
		groupHi := groupLo + groupSize
		if groupHi > n {
			groupHi = n
		}
		mergeGroup(in[groupLo:groupHi], out[groupLo:groupHi], runLength)
	}, nil, numGroups)
	pool.RunUntilEmpty()
	pool.Wait(item)
}

// mergeGroup merges up to fanout consecutive runs of length runLength
// within in into out, which must have the same length as in. Ends of runs
// and end-of-array are treated as sentinel-exhausted.
func mergeGroup(in, out []element.Element, runLength int) {
	numRuns := (len(in) + runLength - 1) / runLength
	cursors := make([]int, numRuns)
	ends := make([]int, numRuns)
	for r := 0; r < numRuns; r++ {
		lo := r * runLength
		hi := lo + runLength
		if hi > len(in) {
			hi = len(in)
		}
		cursors[r] = lo
		ends[r] = hi
	}

	for o := 0; o < len(out); o++ {
		best := -1
		for r := 0; r < numRuns; r++ {
			if cursors[r] >= ends[r] {
				continue
			}
			if best == -1 || element.Compare(in[cursors[r]], in[cursors[best]]) < 0 {
				best = r
			}
		}
		out[o] = in[cursors[best]]
		cursors[best]++
	}
}
