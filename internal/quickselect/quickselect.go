// Package quickselect implements the distributed quickselect used to pick
// global partition pivots across ranks (C6, SPEC_FULL.md §4.6).
package quickselect

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/oblivsort/orshuffle/internal/element"
	"github.com/oblivsort/orshuffle/internal/orerrors"
	"github.com/oblivsort/orshuffle/internal/transport"
)

// Splitter is one selected global order statistic: its (key, orp_id) value
// and the local index in the calling rank's array at which it sits.
// HasLocal reports whether it sits on this rank; LocalIdx is meaningful
// only when HasLocal is true.
type Splitter struct {
	Value    element.Element
	LocalIdx int
	HasLocal bool
}

// Select runs distributed quickselect over arr[0:len(arr)] on this rank,
// picking the order statistics named by targets (sorted, strictly
// increasing, relative to the union of all ranks' active slices) and
// returns one Splitter per target, in target order.
//
// ch is this rank's transport channel. Select partitions arr in place
// around the chosen pivots as it goes.
func Select(ch transport.Channel, arr []element.Element, targets []int) ([]Splitter, error) {
	result := make([]Splitter, len(targets))
	filled := make([]bool, len(targets))

	err := recurse(ch, arr, 0, len(arr), 0, targets, result, filled)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recurse implements one level of SPEC_FULL.md §4.6's coordination
// protocol over the active slice arr[left:right] on this rank, filling in
// any targets it resolves. base is the absolute global order-statistic
// count of every element already excluded from this active slice (i.e.
// provably <= every element still in play here); it lets target matching
// compare against absolute, whole-array order statistics even though each
// level's own partition count only covers its own active slice.
func recurse(ch transport.Channel, arr []element.Element, left, right, base int, targets []int, result []Splitter, filled []bool) error {
	if len(targets) == 0 {
		return nil
	}

	ready := left < right
	master, err := electMaster(ch, ready)
	if err != nil {
		return err
	}
	if master < 0 {
		return orerrors.Wrap(orerrors.KindProtocol, "quickselect: master election", orerrors.ErrAllRanksEmpty)
	}

	pivot, err := broadcastPivot(ch, master, arr, left)
	if err != nil {
		return err
	}

	partitionLeft, partitionRight := hoarePartition(arr, left, right, pivot, ch.Rank() == master)

	// The master's own pivot element still sits at arr[left] untouched by
	// hoarePartition (which excludes that slot from swapping). Move it to
	// the last slot of its own <=pivot block so the left recursion's bounds
	// no longer cover it: otherwise a master re-elected on the very next
	// level would re-read the same frozen arr[left] as the next pivot and
	// make no progress.
	pivotIdx := left
	leftRecurseEnd := partitionRight
	if ch.Rank() == master {
		pivotIdx = partitionRight - 1
		if pivotIdx != left {
			arr[left], arr[pivotIdx] = arr[pivotIdx], arr[left]
		}
		leftRecurseEnd = pivotIdx
	}

	localRank, err := reducePivotRank(ch, master, partitionRight-left)
	if err != nil {
		return err
	}
	// localRank only counts elements within this level's own active slice
	// (every rank's arr[left:right]); rebase it onto base so curPivot is the
	// pivot's absolute order statistic over the whole original array, since
	// targets are expressed in that same absolute space.
	curPivot := base + localRank

	// Target matching: find the first target >= curPivot.
	splitIdx := 0
	for splitIdx < len(targets) && targets[splitIdx] < curPivot {
		splitIdx++
	}
	leftTargets := targets[:splitIdx]
	rightTargets := targets[splitIdx:]
	if len(rightTargets) > 0 && rightTargets[0] == curPivot {
		for i, t := range targets {
			if t == curPivot {
				result[i] = Splitter{Value: pivot, LocalIdx: pivotIdx, HasLocal: left < right && ch.Rank() == master}
				filled[i] = true
			}
		}
		rightTargets = rightTargets[1:]
	}

	// The left branch's active slice starts at the same absolute offset as
	// this call, so its base is unchanged. The right branch's active slice
	// begins right after everything <= pivot, so its base is curPivot.
	if err := recurse(ch, arr, left, leftRecurseEnd, base, leftTargets, result, filled); err != nil {
		return err
	}
	return recurse(ch, arr, partitionLeft, right, curPivot, rightTargets, result, filled)
}

// electMaster broadcasts this rank's ready flag to every peer and returns
// the lowest-numbered ready rank, or -1 if none is ready.
func electMaster(ch transport.Channel, ready bool) (int, error) {
	flags := make([]bool, ch.Size())
	flags[ch.Rank()] = ready

	g := new(errgroup.Group)
	for p := 0; p < ch.Size(); p++ {
		if p == ch.Rank() {
			continue
		}
		p := p
		g.Go(func() error {
			buf := []byte{0}
			if ready {
				buf[0] = 1
			}
			return ch.Send(buf, p, transport.QuickselectTag)
		})
	}
	g2 := new(errgroup.Group)
	for p := 0; p < ch.Size(); p++ {
		if p == ch.Rank() {
			continue
		}
		p := p
		g2.Go(func() error {
			var buf [1]byte
			if _, err := ch.Recv(buf[:], p, transport.QuickselectTag); err != nil {
				return err
			}
			flags[p] = buf[0] == 1
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return -1, orerrors.Wrap(orerrors.KindTransport, "quickselect: broadcast ready flag", err)
	}
	if err := g2.Wait(); err != nil {
		return -1, orerrors.Wrap(orerrors.KindTransport, "quickselect: receive ready flags", err)
	}

	for r, f := range flags {
		if f {
			return r, nil
		}
	}
	return -1, nil
}

// broadcastPivot has the master send arr[left] to every peer and returns the
// agreed pivot value.
func broadcastPivot(ch transport.Channel, master int, arr []element.Element, left int) (element.Element, error) {
	codec := element.Codec{}
	if ch.Rank() == master {
		pivot := arr[left]
		// Payload-free for coordination purposes: only (key, orp_id) is
		// needed to route partitioning and target matching.
		codec.PayloadLen = 0
		buf := codec.Encode(nil, pivot)
		g := new(errgroup.Group)
		for p := 0; p < ch.Size(); p++ {
			if p == master {
				continue
			}
			p := p
			g.Go(func() error { return ch.Send(buf, p, transport.QuickselectTag) })
		}
		if err := g.Wait(); err != nil {
			return element.Element{}, orerrors.Wrap(orerrors.KindTransport, "quickselect: broadcast pivot", err)
		}
		return pivot, nil
	}

	buf := make([]byte, element.HeaderSize)
	status, err := ch.Recv(buf, master, transport.QuickselectTag)
	if err != nil {
		return element.Element{}, orerrors.Wrap(orerrors.KindTransport, "quickselect: receive pivot", err)
	}
	if status.Count != element.HeaderSize {
		return element.Element{}, orerrors.Wrap(orerrors.KindProtocol, "quickselect: pivot message size", orerrors.ErrWrongMessageSize)
	}
	pivot, _ := element.Codec{}.Decode(buf)
	return pivot, nil
}

// hoarePartition performs the non-oblivious two-pointer partition of
// arr[left:right] around pivot, excluding the pivot slot itself when this
// rank is the master. It returns partitionRight (the index just past the
// "less-equal" region, so partitionRight-left elements are <= pivot) and
// partitionLeft (the start of the "greater" region) such that
// arr[left:partitionRight] <= pivot <= arr[partitionLeft:right].
func hoarePartition(arr []element.Element, left, right int, pivot element.Element, isMaster bool) (partitionRight, partitionLeft int) {
	lo, hi := left, right-1
	if isMaster {
		lo++ // exclude the pivot slot itself from partitioning
	}
	for lo <= hi {
		for lo <= hi && element.Compare(arr[lo], pivot) <= 0 {
			lo++
		}
		for lo <= hi && element.Compare(arr[hi], pivot) > 0 {
			hi--
		}
		if lo < hi {
			arr[lo], arr[hi] = arr[hi], arr[lo]
			lo++
			hi--
		}
	}
	return lo, lo
}

// reducePivotRank has the master sum every rank's local partitionRight
// count (relative to the active slice, i.e. minus left) into the pivot's
// order statistic within this level's active slice, and broadcasts the
// total. The caller rebases this onto the absolute order-statistic space.
func reducePivotRank(ch transport.Channel, master int, localCount int) (int, error) {
	if ch.Rank() == master {
		total := localCount
		g := new(errgroup.Group)
		var mu sync.Mutex
		for p := 0; p < ch.Size(); p++ {
			if p == master {
				continue
			}
			p := p
			g.Go(func() error {
				var buf [8]byte
				if _, err := ch.Recv(buf[:], p, transport.QuickselectTag); err != nil {
					return err
				}
				v := int(binary.LittleEndian.Uint64(buf[:]))
				mu.Lock()
				total += v
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, orerrors.Wrap(orerrors.KindTransport, "quickselect: reduce pivot rank", err)
		}

		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(total))
		g2 := new(errgroup.Group)
		for p := 0; p < ch.Size(); p++ {
			if p == master {
				continue
			}
			p := p
			g2.Go(func() error { return ch.Send(buf, p, transport.QuickselectTag) })
		}
		if err := g2.Wait(); err != nil {
			return 0, orerrors.Wrap(orerrors.KindTransport, "quickselect: broadcast pivot rank", err)
		}
		return total, nil
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(localCount))
	if err := ch.Send(buf, master, transport.QuickselectTag); err != nil {
		return 0, orerrors.Wrap(orerrors.KindTransport, "quickselect: send local count", err)
	}
	var recvBuf [8]byte
	if _, err := ch.Recv(recvBuf[:], master, transport.QuickselectTag); err != nil {
		return 0, orerrors.Wrap(orerrors.KindTransport, "quickselect: receive pivot rank", err)
	}
	return int(binary.LittleEndian.Uint64(recvBuf[:])), nil
}
