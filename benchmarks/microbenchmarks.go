package benchmarks

import (
	"github.com/sarchlab/cachesim/loader"
	"github.com/sarchlab/cachesim/timing/cache"
)

// Repeats is how many times the looping workloads walk their pattern.
const Repeats = 4

// wordSize is the stride of the streaming workloads.
const wordSize = 4

// GetMicrobenchmarks returns the standard set of access-pattern workloads.
// Each benchmark stresses one behavior of the cache.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		sequentialStream(),
		sameSetConflict(),
		pingPong(),
		workingSetLoop(),
		writeHeavyStream(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		sequentialStream(),
		sameSetConflict(),
		workingSetLoop(),
	}
}

// 1. Sequential Stream - spatial locality within a line
func sequentialStream() Benchmark {
	return Benchmark{
		Name:        "sequential_stream",
		Description: "word-stride reads over twice the capacity - one miss per line",
		Generate: func(config cache.Config) []loader.Record {
			span := uint64(2 * config.Size)
			records := make([]loader.Record, 0, span/wordSize)
			for addr := uint64(0); addr < span; addr += wordSize {
				records = append(records, loader.Record{Address: addr, Instructions: 1})
			}
			return records
		},
	}
}

// 2. Same-Set Conflict - one more tag than ways, walked round-robin
func sameSetConflict() Benchmark {
	return Benchmark{
		Name:        "same_set_conflict",
		Description: "associativity+1 lines in one set, round-robin - every access misses",
		Generate: func(config cache.Config) []loader.Record {
			return cycle(setStride(config), config.Associativity+1, Repeats, false)
		},
	}
}

// 3. Ping-Pong - two lines sharing a set
func pingPong() Benchmark {
	return Benchmark{
		Name:        "ping_pong",
		Description: "two lines in one set, alternating - thrashes only when direct-mapped",
		Generate: func(config cache.Config) []loader.Record {
			return cycle(setStride(config), 2, 4*Repeats, false)
		},
	}
}

// 4. Working-Set Loop - a loop that fits exactly
func workingSetLoop() Benchmark {
	return Benchmark{
		Name:        "working_set_loop",
		Description: "every line of the cache, looped - only compulsory misses",
		Generate: func(config cache.Config) []loader.Record {
			return cycle(uint64(config.BlockSize), config.NumBlocks(), Repeats, false)
		},
	}
}

// 5. Write-Heavy Stream - dirty evictions
func writeHeavyStream() Benchmark {
	return Benchmark{
		Name:        "write_heavy_stream",
		Description: "one write per line over twice the capacity - dirty writeback per eviction",
		Generate: func(config cache.Config) []loader.Record {
			return cycle(uint64(config.BlockSize), 2*config.NumBlocks(), 1, true)
		},
	}
}

// setStride is the distance between consecutive lines mapping to the same set.
func setStride(config cache.Config) uint64 {
	return uint64(config.NumSets() * config.BlockSize)
}

// cycle walks lines 0, stride, 2*stride, ... (count lines) repeats times.
func cycle(stride uint64, count, repeats int, isWrite bool) []loader.Record {
	records := make([]loader.Record, 0, count*repeats)
	for r := 0; r < repeats; r++ {
		for i := 0; i < count; i++ {
			records = append(records, loader.Record{
				IsWrite:      isWrite,
				Address:      uint64(i) * stride,
				Instructions: 1,
			})
		}
	}
	return records
}
