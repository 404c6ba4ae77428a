package sort

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oblivsort/orshuffle/internal/config"
	"github.com/oblivsort/orshuffle/internal/element"
	"github.com/oblivsort/orshuffle/internal/logging"
	"github.com/oblivsort/orshuffle/internal/transport"
)

func quietLogger() *logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ErrorLevel
	return logging.New(cfg)
}

func TestShuffleSortSingleRank(t *testing.T) {
	cfg := config.Default()
	cfg.World = config.World{Rank: 0, Size: 1}
	cfg.Tunables.MarkCoins = 4
	cfg.Tunables.MergeFanout = 4

	elems := make([]element.Element, 8)
	rng := rand.New(rand.NewSource(1))
	for i := range elems {
		elems[i] = element.Element{Key: rng.Uint64() % 100}
	}

	hub := transport.NewHub(1)
	rc := OpenRankContext(2, quietLogger())
	defer rc.Close()

	out, err := ShuffleSort(hub.Channel(0), elems, cfg, rc)
	require.NoError(t, err)
	if len(out) != 8 {
		t.Fatalf("got %d elements, want 8", len(out))
	}
	for i := 1; i < len(out); i++ {
		if element.Compare(out[i-1], out[i]) > 0 {
			t.Fatalf("output not sorted at index %d: %+v", i, out)
		}
	}
}

func TestShuffleSortTwoRanksGloballySorted(t *testing.T) {
	const n = 2
	const perRank = 8

	rng := rand.New(rand.NewSource(2))
	inputs := make([][]element.Element, n)
	var allKeys []uint64
	for r := 0; r < n; r++ {
		elems := make([]element.Element, perRank)
		for i := range elems {
			k := rng.Uint64() % 1000
			elems[i] = element.Element{Key: k}
			allKeys = append(allKeys, k)
		}
		inputs[r] = elems
	}

	hub := transport.NewHub(n)
	results := make([][]element.Element, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for r := 0; r < n; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg := config.Default()
			cfg.World = config.World{Rank: r, Size: n}
			cfg.Tunables.MarkCoins = 4
			cfg.Tunables.MergeFanout = 4
			rc := OpenRankContext(2, quietLogger())
			defer rc.Close()
			out, err := ShuffleSort(hub.Channel(r), inputs[r], cfg, rc)
			results[r] = out
			errs[r] = err
		}()
	}
	wg.Wait()

	for r, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", r, err)
		}
	}

	var flat []element.Element
	for _, out := range results {
		flat = append(flat, out...)
	}
	if len(flat) != n*perRank {
		t.Fatalf("total output length %d, want %d", len(flat), n*perRank)
	}
	for i := 1; i < len(flat); i++ {
		if element.Compare(flat[i-1], flat[i]) > 0 {
			t.Fatalf("global output not sorted at index %d: %+v", i, flat)
		}
	}

	gotKeys := make([]uint64, len(flat))
	for i, e := range flat {
		gotKeys[i] = e.Key
	}
	if !sameMultiset(gotKeys, allKeys) {
		t.Fatal("output keys are not a permutation of the input keys")
	}
}

func TestShuffleSortRejectsUnsupportedVariant(t *testing.T) {
	cfg := config.Default()
	cfg.World = config.World{Rank: 0, Size: 1}
	cfg.SortVariant = config.VariantBitonic

	hub := transport.NewHub(1)
	rc := OpenRankContext(1, quietLogger())
	defer rc.Close()

	_, err := ShuffleSort(hub.Channel(0), []element.Element{{Key: 1}}, cfg, rc)
	if err == nil {
		t.Fatal("expected an error for an unsupported sort variant")
	}
}

func sameMultiset(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[uint64]int)
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}
