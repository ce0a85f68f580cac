// Package stats accumulates cache access counters and derives the summary
// metrics of a simulation run.
package stats

import (
	"errors"
	"fmt"
)

// ErrDegenerateSummary is returned when the counters cannot produce a miss
// rate or IPC, e.g. because no access was recorded.
var ErrDegenerateSummary = errors.New("degenerate summary")

// Counters holds the raw event counts of a run.
type Counters struct {
	// Accesses is the number of trace records processed.
	Accesses uint64 `json:"accesses"`
	// Writes is the number of write accesses.
	Writes uint64 `json:"writes"`
	// Misses is the number of cache misses.
	Misses uint64 `json:"misses"`
	// DirtyWritebacks is the number of dirty blocks evicted.
	DirtyWritebacks uint64 `json:"dirty_writebacks"`
	// Instructions is the sum of the instruction counts of all records.
	Instructions uint64 `json:"instructions"`
}

// Hits returns the number of accesses that hit.
func (c Counters) Hits() uint64 {
	return c.Accesses - c.Misses
}

// Penalties are the cycle costs used to turn counters into cycles.
type Penalties struct {
	Miss           uint64
	DirtyWriteback uint64

	// IncludeWriteback adds DirtyWriteback cycles per dirty writeback to the
	// total cycle count.
	IncludeWriteback bool
}

// Summary holds the derived metrics of a run.
type Summary struct {
	Counters

	// MissRate is misses / accesses, in percent.
	MissRate float64 `json:"miss_rate"`
	// TotalCycles is misses*miss penalty + instructions, plus dirty
	// writebacks*writeback penalty when enabled.
	TotalCycles uint64 `json:"total_cycles"`
	// IPC is instructions / total cycles.
	IPC float64 `json:"ipc"`
}

// Accumulator owns the running counters.
type Accumulator struct {
	counters Counters
}

// NewAccumulator creates an accumulator with all counters at zero.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Record adds one access to the counters.
func (a *Accumulator) Record(instructions uint64, isWrite, hit, dirtyWriteback bool) {
	a.counters.Accesses++
	a.counters.Instructions += instructions

	if isWrite {
		a.counters.Writes++
	}
	if !hit {
		a.counters.Misses++
	}
	if dirtyWriteback {
		a.counters.DirtyWritebacks++
	}
}

// Counters returns a copy of the current counters.
func (a *Accumulator) Counters() Counters {
	return a.counters
}

// Reset clears all counters.
func (a *Accumulator) Reset() {
	a.counters = Counters{}
}

// Summary derives the miss rate, total cycles and IPC.
func (a *Accumulator) Summary(p Penalties) (Summary, error) {
	c := a.counters
	if c.Accesses == 0 {
		return Summary{Counters: c}, fmt.Errorf("%w: no accesses recorded", ErrDegenerateSummary)
	}

	cycles := c.Misses*p.Miss + c.Instructions
	if p.IncludeWriteback {
		cycles += c.DirtyWritebacks * p.DirtyWriteback
	}

	s := Summary{
		Counters:    c,
		MissRate:    float64(c.Misses) / float64(c.Accesses) * 100,
		TotalCycles: cycles,
	}

	if cycles == 0 {
		return s, fmt.Errorf("%w: zero total cycles", ErrDegenerateSummary)
	}

	s.IPC = float64(c.Instructions) / float64(cycles)

	return s, nil
}
