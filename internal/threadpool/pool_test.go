package threadpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPushIterationRunsEveryIndexExactlyOnce(t *testing.T) {
	p := Open(4)
	defer p.Close()

	const n = 10_000
	var counts [n]int32
	item := p.PushIteration(func(arg interface{}, i int) {
		atomic.AddInt32(&counts[i], 1)
	}, nil, n)
	p.RunUntilEmpty()
	p.Wait(item)

	for i, c := range counts {
		if c != 1 {
			t.Fatalf("index %d ran %d times, want 1", i, c)
		}
	}
}

func TestPushIterationZeroCountWaitsImmediately(t *testing.T) {
	p := Open(2)
	defer p.Close()

	item := p.PushIteration(func(arg interface{}, i int) {
		t.Fatal("fn must not be called for a zero-count item")
	}, nil, 0)

	done := make(chan struct{})
	go func() {
		p.Wait(item)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait on a zero-count item did not return")
	}
}

func TestItemFailFirstWins(t *testing.T) {
	p := Open(1)
	defer p.Close()

	item := p.PushIteration(func(arg interface{}, i int) {}, nil, 1)
	p.RunUntilEmpty()
	p.Wait(item)

	item.Fail(7)
	item.Fail(9)
	if got := item.Failed(); got != 7 {
		t.Fatalf("Failed() = %d, want 7 (first wins)", got)
	}
}

func TestItemFailZeroIsNoOp(t *testing.T) {
	p := Open(1)
	defer p.Close()
	item := p.PushIteration(func(arg interface{}, i int) {}, nil, 1)
	p.RunUntilEmpty()
	p.Wait(item)

	item.Fail(0)
	if item.Failed() != 0 {
		t.Fatalf("Failed() = %d, want 0", item.Failed())
	}
}

func TestMultipleItemsProcessedInSequence(t *testing.T) {
	p := Open(3)
	defer p.Close()

	var sumA, sumB int32

	itemA := p.PushIteration(func(arg interface{}, i int) {
		atomic.AddInt32(&sumA, int32(i))
	}, nil, 100)
	itemB := p.PushIteration(func(arg interface{}, i int) {
		atomic.AddInt32(&sumB, int32(i))
	}, nil, 50)

	p.RunUntilEmpty()
	p.Wait(itemA)
	p.Wait(itemB)

	if sumA != (100*99)/2 {
		t.Fatalf("sumA = %d, want %d", sumA, (100*99)/2)
	}
	if sumB != (50*49)/2 {
		t.Fatalf("sumB = %d, want %d", sumB, (50*49)/2)
	}
}

func TestRendezvousAllReturnsWithoutDeadlock(t *testing.T) {
	p := Open(4)
	defer p.Close()

	done := make(chan struct{})
	go func() {
		p.RendezvousAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RendezvousAll did not return")
	}
}

func TestRendezvousAllSingleThreadedPoolReturnsImmediately(t *testing.T) {
	p := Open(1)
	defer p.Close()

	done := make(chan struct{})
	go func() {
		p.RendezvousAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RendezvousAll on a 1-worker pool did not return")
	}
}

func TestRendezvousReleasesAllWaiters(t *testing.T) {
	p := Open(4)
	defer p.Close()

	var arrived int32
	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		go func() {
			atomic.AddInt32(&arrived, 1)
			p.Rendezvous()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Rendezvous did not release all waiters")
		}
	}
}
