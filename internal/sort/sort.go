// Package sort wires together the ORShuffle pipeline's phases behind the
// public entry point named in SPEC_FULL.md §6: mark-and-compact shuffle
// (C5, internally using C4), ORP-ID assignment, distributed quickselect
// (C6), sample partition (C7), and local external merge sort (C8).
package sort

import (
	"github.com/oblivsort/orshuffle/internal/config"
	"github.com/oblivsort/orshuffle/internal/element"
	"github.com/oblivsort/orshuffle/internal/logging"
	"github.com/oblivsort/orshuffle/internal/obliv"
	"github.com/oblivsort/orshuffle/internal/orerrors"
	"github.com/oblivsort/orshuffle/internal/partition"
	"github.com/oblivsort/orshuffle/internal/quickselect"
	"github.com/oblivsort/orshuffle/internal/shuffle"
	"github.com/oblivsort/orshuffle/internal/mergesort"
	"github.com/oblivsort/orshuffle/internal/threadpool"
	"github.com/oblivsort/orshuffle/internal/transport"
)

// RankContext carries the process-wide state a job needs: the thread pool
// its iteration kernels dispatch through, its random source and its logger
// (SPEC_FULL.md §9: carried explicitly, not as package-level globals). The
// rank's identity comes from its transport.Channel.
type RankContext struct {
	Pool *threadpool.Pool
	RNG  obliv.Source
	Log  *logging.Logger
}

// OpenRankContext constructs a RankContext with a freshly opened thread
// pool. Callers must call Close once every job using it has completed.
func OpenRankContext(numThreads int, log *logging.Logger) *RankContext {
	if log == nil {
		log = logging.New(logging.DefaultConfig())
	}
	return &RankContext{
		Pool: threadpool.Open(numThreads),
		RNG:  obliv.System,
		Log:  log,
	}
}

// Close tears down the rank's thread pool.
func (rc *RankContext) Close() {
	rc.Pool.Close()
}

// ShuffleSort is the public entry point (SPEC_FULL.md §6): it shuffles arr
// obliviously, then sample-partitions and locally merge-sorts so that the
// concatenation of every rank's output (in rank order) is globally sorted
// on (Key, ORPID).
//
// arr is this rank's local share on entry; it is shuffled and partitioned
// in place as working space, and its contents on return are unspecified.
// The returned slice is this rank's globally-sorted output partition, whose
// length may differ from len(arr) (each rank's output share need not equal
// its input share). On error, the contents of arr are undefined
// (SPEC_FULL.md §7).
func ShuffleSort(ch transport.Channel, arr []element.Element, cfg config.Config, rc *RankContext) ([]element.Element, error) {
	if cfg.SortVariant != config.VariantORShuffle {
		return nil, orerrors.Wrap(orerrors.KindProtocol, "shufflesort: unsupported variant", orerrors.ErrUnsupportedVariant)
	}

	rc.Log.WithField("phase", "shuffle").WithField("length", len(arr)).Info("starting oblivious shuffle")

	codec := element.Codec{}
	if len(arr) > 0 {
		codec.PayloadLen = len(arr[0].Payload)
	}

	if err := shufflePhase(arr, codec, cfg, rc); err != nil {
		return nil, err
	}

	rc.Log.WithField("phase", "quickselect").Info("selecting global splitters")
	cutIdxs, total, err := quickselectPhase(ch, arr)
	if err != nil {
		return nil, err
	}

	rc.Log.WithField("phase", "partition").Info("redistributing partitions")
	dstLen := config.LocalLength(total, ch.Rank(), ch.Size())
	out, err := partition.Run(ch, arr, cutIdxs, codec, dstLen, cfg.Tunables.SamplePartitionBuf)
	if err != nil {
		return nil, err
	}

	// Fence the worker pool between the redistribution phase (which never
	// touches the pool) and the final parallel phase, so every worker
	// starts the merge sort from a clean barrier rather than mid-drain from
	// whatever it last picked up during shufflePhase's ORP-ID assignment.
	rc.Pool.RendezvousAll()

	rc.Log.WithField("phase", "mergesort").WithField("length", len(out)).Info("local merge sort")
	scratch := make([]element.Element, len(out))
	mergesort.Sort(rc.Pool, out, scratch, cfg.Tunables.MergeFanout)

	return out, nil
}

// shufflePhase runs C5 (mark/compact shuffle + ORP-ID assignment) in place
// over arr. len(arr) must be a power of two, or 0/1.
func shufflePhase(arr []element.Element, codec element.Codec, cfg config.Config, rc *RankContext) error {
	length := len(arr)
	if length < 2 {
		return nil
	}
	elemSize := codec.EncodedSize()
	buf := make([]byte, 0, length*elemSize)
	for _, e := range arr {
		buf = codec.Encode(buf, e)
	}

	if err := shuffle.Shuffle(buf, elemSize, length, rc.RNG, cfg.Tunables.MarkCoins); err != nil {
		return err
	}

	rest := buf
	for i := range arr {
		e, n := codec.Decode(rest)
		arr[i] = e
		rest = rest[n:]
	}

	return shuffle.AssignORPIDs(rc.Pool, arr, rc.RNG)
}

// quickselectPhase selects N-1 splitters at equally spaced global order
// statistics and returns the N+1 local cut-points (§4.7) they imply on this
// rank's array: cutIdxs[0] == 0, cutIdxs[N] == len(arr), and
// arr[cutIdxs[p]:cutIdxs[p+1]] is this rank's contribution to peer p's
// bucket. It also returns the global total length across every rank.
func quickselectPhase(ch transport.Channel, arr []element.Element) ([]int, int, error) {
	n := ch.Size()

	total, err := globalLength(ch, len(arr))
	if err != nil {
		return nil, 0, err
	}

	if n == 1 {
		return []int{0, len(arr)}, total, nil
	}

	targets := make([]int, n-1)
	for k := 1; k < n; k++ {
		targets[k-1] = total * k / n
	}

	splitters, err := quickselect.Select(ch, arr, targets)
	if err != nil {
		return nil, 0, err
	}

	cutIdxs := make([]int, n+1)
	cutIdxs[n] = len(arr)
	for k, s := range splitters {
		// The splitter itself sits at LocalIdx and belongs to the lower
		// bucket, so the cut falls just after it.
		idx := s.LocalIdx + 1
		if !s.HasLocal {
			idx = localBucketBoundary(arr, s.Value)
		}
		cutIdxs[k+1] = idx
	}
	return cutIdxs, total, nil
}

// localBucketBoundary finds, by binary search, the position in arr's
// already-partitioned prefix structure where elements stop being <= v.
// Used when a splitter selected on another rank does not carry a local
// index for this rank.
func localBucketBoundary(arr []element.Element, v element.Element) int {
	lo, hi := 0, len(arr)
	for lo < hi {
		mid := (lo + hi) / 2
		if element.Compare(arr[mid], v) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// globalLength all-reduces this rank's local length into the sum across
// every rank, via the same master-coordination channel quickselect uses.
func globalLength(ch transport.Channel, local int) (int, error) {
	// Rank 0 gathers and broadcasts; this mirrors the master-election
	// pattern in quickselect without duplicating its election logic for a
	// single scalar reduction.
	if ch.Rank() == 0 {
		total := local
		buf := make([]byte, 8)
		for p := 1; p < ch.Size(); p++ {
			if _, err := ch.Recv(buf, p, transport.QuickselectTag); err != nil {
				return 0, orerrors.Wrap(orerrors.KindTransport, "globallength: gather", err)
			}
			total += int(le64(buf))
		}
		put64(buf, uint64(total))
		for p := 1; p < ch.Size(); p++ {
			if err := ch.Send(buf, p, transport.QuickselectTag); err != nil {
				return 0, orerrors.Wrap(orerrors.KindTransport, "globallength: broadcast", err)
			}
		}
		return total, nil
	}

	buf := make([]byte, 8)
	put64(buf, uint64(local))
	if err := ch.Send(buf, 0, transport.QuickselectTag); err != nil {
		return 0, orerrors.Wrap(orerrors.KindTransport, "globallength: send", err)
	}
	if _, err := ch.Recv(buf, 0, transport.QuickselectTag); err != nil {
		return 0, orerrors.Wrap(orerrors.KindTransport, "globallength: recv", err)
	}
	return int(le64(buf)), nil
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func put64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
