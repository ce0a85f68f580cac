// Package benchmarks provides synthetic access-pattern workloads and a
// harness that runs them through the cache model.
package benchmarks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/cachesim/loader"
	"github.com/sarchlab/cachesim/recording"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/core"
)

// BenchmarkResult holds the results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	Accesses        uint64 `json:"accesses"`
	Writes          uint64 `json:"writes"`
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	DirtyWritebacks uint64 `json:"dirty_writebacks"`
	Instructions    uint64 `json:"instructions"`

	// TotalCycles is the cycle count under the harness penalties
	TotalCycles uint64 `json:"total_cycles"`

	// MissRate is a percentage
	MissRate float64 `json:"miss_rate"`

	IPC float64 `json:"ipc"`

	// Error is set when the run failed
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single synthetic workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Generate builds the access sequence for a cache configuration.
	Generate func(config cache.Config) []loader.Record
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Cache is the cache configuration every benchmark runs against
	Cache cache.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose prints one line per simulated access
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Cache:   *cache.DefaultConfig(),
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark on a fresh cache.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	c, err := cache.New(h.config.Cache)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	opts := []core.Option{}
	if h.config.Verbose {
		opts = append(opts, core.WithSink(recording.NewTextSink(h.config.Output)))
	}

	sim := core.NewSimulator(c, opts...)
	source := newRecordSource(bench.Generate(h.config.Cache))

	start := time.Now()
	summary, err := sim.Run(source)
	result.WallTime = time.Since(start)

	counters := sim.Counters()
	result.Accesses = counters.Accesses
	result.Writes = counters.Writes
	result.Hits = counters.Hits()
	result.Misses = counters.Misses
	result.DirtyWritebacks = counters.DirtyWritebacks
	result.Instructions = counters.Instructions

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.TotalCycles = summary.TotalCycles
	result.MissRate = summary.MissRate
	result.IPC = summary.IPC

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Cache Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Accesses:         %d\n", r.Accesses)
		_, _ = fmt.Fprintf(h.config.Output, "  Writes:           %d\n", r.Writes)
		_, _ = fmt.Fprintf(h.config.Output, "  Hits:             %d\n", r.Hits)
		_, _ = fmt.Fprintf(h.config.Output, "  Misses:           %d\n", r.Misses)
		_, _ = fmt.Fprintf(h.config.Output, "  Dirty Writebacks: %d\n", r.DirtyWritebacks)
		_, _ = fmt.Fprintf(h.config.Output, "  Total Cycles:     %d\n", r.TotalCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Miss Rate:        %.2f%%\n", r.MissRate)
		_, _ = fmt.Fprintf(h.config.Output, "  IPC:              %.4f\n", r.IPC)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,accesses,writes,hits,misses,dirty_writebacks,instructions,cycles,miss_rate,ipc")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%d,%.2f,%.4f\n",
			r.Name,
			r.Accesses,
			r.Writes,
			r.Hits,
			r.Misses,
			r.DirtyWritebacks,
			r.Instructions,
			r.TotalCycles,
			r.MissRate,
			r.IPC,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config is the cache configuration used
	Config cache.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks int    `json:"total_benchmarks"`
	TotalAccesses   uint64 `json:"total_accesses"`
	TotalMisses     uint64 `json:"total_misses"`
	TotalCycles     uint64 `json:"total_cycles"`

	// AverageMissRate is the miss rate over all accesses, as a percentage
	AverageMissRate float64 `json:"average_miss_rate"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Version is reported in the JSON metadata.
const Version = "0.1.0"

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var summary ReportSummary
	summary.TotalBenchmarks = len(results)
	for _, r := range results {
		summary.TotalAccesses += r.Accesses
		summary.TotalMisses += r.Misses
		summary.TotalCycles += r.TotalCycles
		summary.TotalWallTime += r.WallTime
	}

	if summary.TotalAccesses > 0 {
		summary.AverageMissRate = 100 * float64(summary.TotalMisses) / float64(summary.TotalAccesses)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config:    h.config.Cache,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// recordSource replays an in-memory access sequence.
type recordSource struct {
	records []loader.Record
	next    int
	closed  bool
}

func newRecordSource(records []loader.Record) *recordSource {
	return &recordSource{records: records}
}

func (s *recordSource) Next() (loader.Record, error) {
	if s.closed {
		return loader.Record{}, errors.New("record source closed")
	}
	if s.next >= len(s.records) {
		return loader.Record{}, io.EOF
	}

	rec := s.records[s.next]
	s.next++

	return rec, nil
}

func (s *recordSource) Close() error {
	s.closed = true
	return nil
}
