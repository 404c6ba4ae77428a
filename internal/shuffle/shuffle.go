// Package shuffle implements the ORShuffle driver (C5): it produces a
// uniformly random permutation of a local, power-of-two-length array using
// only oblivious operations, then assigns fresh random ORP IDs
// (SPEC_FULL.md §4.5).
package shuffle

import (
	"github.com/oblivsort/orshuffle/internal/compaction"
	"github.com/oblivsort/orshuffle/internal/element"
	"github.com/oblivsort/orshuffle/internal/obliv"
	"github.com/oblivsort/orshuffle/internal/orerrors"
	"github.com/oblivsort/orshuffle/internal/threadpool"
)

// DefaultMarkCoins is the default bound on how many 32-bit random draws the
// marking step pulls in one chunk (MarkCoins, SPEC_FULL.md §4.5).
const DefaultMarkCoins = 2048

// Shuffle randomly permutes a[0:length] in place, where a holds
// `elemSize`-byte elements and length is a power of two. rng supplies all
// randomness; markCoins bounds the chunk size used by the marking step (0
// selects DefaultMarkCoins).
func Shuffle(a []byte, elemSize int, length int, rng obliv.Source, markCoins int) error {
	if markCoins <= 0 {
		markCoins = DefaultMarkCoins
	}
	return shuffleRec(a[:length*elemSize], elemSize, length, rng, markCoins)
}

func shuffleRec(a []byte, elemSize, length int, rng obliv.Source, markCoins int) error {
	if length < 2 {
		return nil
	}
	if length == 2 {
		bit, err := rng.RandBit()
		if err != nil {
			return orerrors.Wrap(orerrors.KindRNG, "shuffle: draw swap bit", err)
		}
		obliv.OSwap(a[0:elemSize], a[elemSize:2*elemSize], bit)
		return nil
	}

	marked, prefix, err := markHalf(length, rng, markCoins)
	if err != nil {
		return err
	}

	compaction.Compact(a, elemSize, marked, prefix, length, 0)

	half := length / 2
	if err := shuffleRec(a[:half*elemSize], elemSize, half, rng, markCoins); err != nil {
		return err
	}
	return shuffleRec(a[half*elemSize:length*elemSize], elemSize, half, rng, markCoins)
}

// markHalf marks exactly length/2 of the length cells uniformly at random
// via reservoir sampling without replacement, drawing 32-bit coins in
// chunks of up to markCoins at a time (SPEC_FULL.md §4.5 step 1), and
// returns the mark array alongside its running-sum prefix.
func markHalf(length int, rng obliv.Source, markCoins int) ([]uint8, []int, error) {
	marked := make([]uint8, length)
	prefix := make([]int, length)

	needed := length / 2
	remainingTotal := length
	soFar := 0

	coins := make([]uint32, 0, markCoins)
	for i := 0; i < length; i++ {
		if len(coins) == 0 {
			n := markCoins
			if remaining := length - i; remaining < n {
				n = remaining
			}
			var err error
			coins, err = drawCoins(rng, n)
			if err != nil {
				return nil, nil, err
			}
		}
		coin := coins[0]
		coins = coins[1:]

		// floor(coin*remainingTotal / 2^32) is uniform over
		// [0, remainingTotal); it falls below needed-soFar with probability
		// (needed-soFar)/remainingTotal, so exactly `needed` cells get marked.
		mark := uint64(coin)*uint64(remainingTotal) < (uint64(needed-soFar) << 32)
		if mark {
			marked[i] = 1
			soFar++
		}
		remainingTotal--

		if i == 0 {
			prefix[i] = int(marked[i])
		} else {
			prefix[i] = prefix[i-1] + int(marked[i])
		}
	}
	return marked, prefix, nil
}

func drawCoins(rng obliv.Source, n int) ([]uint32, error) {
	coins := make([]uint32, n)
	for i := range coins {
		v, err := rng.RandUint32()
		if err != nil {
			return nil, orerrors.Wrap(orerrors.KindRNG, "shuffle: draw mark coin", err)
		}
		coins[i] = v
	}
	return coins, nil
}

// AssignORPIDs fills the ORPID field of every element in elems with fresh
// random bytes, dispatched as an iteration kernel sharded across the pool's
// worker threads over the full [0, length) range (SPEC_FULL.md §9 Open
// question: resolved to the full range, not the conflicting
// length=0,start_idx=length reading of the original source).
func AssignORPIDs(pool *threadpool.Pool, elems []element.Element, rng obliv.Source) error {
	var it threadpool.Item
	it = pool.PushIteration(func(arg interface{}, i int) {
		var buf [8]byte
		if err := rng.RandBytes(buf[:]); err != nil {
			// First error wins; later iterations are not cancelled and
			// keep writing their own independent cells (SPEC_FULL.md §7).
			it.Fail(1)
			return
		}
		elems[i].ORPID = bytesToUint64(buf)
	}, nil, len(elems))
	pool.RunUntilEmpty()
	pool.Wait(it)

	if it.Failed() != 0 {
		return orerrors.Newf(orerrors.KindRNG, "shuffle: assign ORP IDs: rng failure in iteration kernel")
	}
	return nil
}

func bytesToUint64(b [8]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
