// Package config holds the compile-time tunables and per-job configuration
// for the shuffle-sort pipeline (SPEC_FULL.md §6), loadable from an optional
// JSON file and overridable by CLI flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// World describes the fixed rank topology for one job. N and the local
// length are fixed before the pipeline starts and must be powers of two
// (SPEC_FULL.md §1 Non-goals).
type World struct {
	Rank int `json:"rank"`
	Size int `json:"size"`
}

// ThreadPool configures the C1 worker pool.
type ThreadPool struct {
	NumThreads int `json:"num_threads"`
}

// Tunables holds the compile-time-default constants from §6, overridable
// for testing at smaller scales.
type Tunables struct {
	SwapChunkSize      int `json:"swap_chunk_size"`
	MarkCoins          int `json:"mark_coins"`
	MergeFanout        int `json:"merge_fanout"`
	SamplePartitionBuf int `json:"sample_partition_buf"`
}

// SortVariant selects which pipeline a job runs. Only ORShuffle is
// implemented by this module; the others are reserved dispatch values
// sharing the same thread pool and transport types (§9).
type SortVariant string

const (
	VariantORShuffle SortVariant = "orshuffle"
	VariantBitonic   SortVariant = "bitonic"
	VariantBucket    SortVariant = "bucket"
	VariantOpaque    SortVariant = "opaque"
)

// Config is the full per-job configuration.
type Config struct {
	World       World       `json:"world"`
	ThreadPool  ThreadPool  `json:"thread_pool"`
	Tunables    Tunables    `json:"tunables"`
	SortVariant SortVariant `json:"sort_variant"`
}

// Default returns the tunable defaults from SPEC_FULL.md §6.
func Default() Config {
	return Config{
		ThreadPool: ThreadPool{NumThreads: 1},
		Tunables: Tunables{
			SwapChunkSize:      4096,
			MarkCoins:          2048,
			MergeFanout:        1024,
			SamplePartitionBuf: 512,
		},
		SortVariant: VariantORShuffle,
	}
}

// LoadFile reads a JSON config file and overlays it onto Default().
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// LocalLength computes ceil(totalLength*(rank+1)/worldSize) -
// ceil(totalLength*rank/worldSize), the local share of a total_length
// array owned by rank (SPEC_FULL.md §6).
func LocalLength(totalLength, rank, worldSize int) int {
	return ceilDiv(totalLength*(rank+1), worldSize) - ceilDiv(totalLength*rank, worldSize)
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
