// Package core provides the trace-driven simulation driver.
// It feeds trace records through the cache model and the statistics
// accumulator, one access at a time.
package core

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sarchlab/cachesim/loader"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/stats"
)

// Source yields trace records. Next returns io.EOF once exhausted.
type Source interface {
	Next() (loader.Record, error)
	Close() error
}

// Sink receives one event per simulated access.
type Sink interface {
	Record(event AccessEvent) error
	Close() error
}

// AccessEvent describes the outcome of one access.
type AccessEvent struct {
	// Seq is the 1-based position of the access in the trace.
	Seq            uint64
	IsWrite        bool
	Address        uint64
	SetIndex       int
	Tag            uint64
	Hit            bool
	DirtyWriteback bool
	Instructions   uint64
}

// Kind returns "W" for writes and "R" for reads.
func (e AccessEvent) Kind() string {
	if e.IsWrite {
		return "W"
	}
	return "R"
}

// State is the driver state.
type State int

const (
	// StateRunning means records are still being consumed.
	StateRunning State = iota
	// StateDone means the trace was exhausted or the run aborted.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Simulator drives a cache with a trace.
type Simulator struct {
	cache     *cache.Cache
	stats     *stats.Accumulator
	penalties stats.Penalties
	sinks     []Sink

	skipMalformed bool
	logger        *log.Logger

	state   State
	seq     uint64
	skipped uint64
}

// Option is a functional option for configuring the Simulator.
type Option func(*Simulator)

// WithSink adds a per-access sink. Sinks are closed when Run returns.
func WithSink(sink Sink) Option {
	return func(s *Simulator) {
		s.sinks = append(s.sinks, sink)
	}
}

// WithPenalties overrides the penalties taken from the cache config.
func WithPenalties(p stats.Penalties) Option {
	return func(s *Simulator) {
		s.penalties = p
	}
}

// WithSkipMalformed makes Run skip malformed records with a warning on
// logger instead of aborting.
func WithSkipMalformed(logger *log.Logger) Option {
	return func(s *Simulator) {
		s.skipMalformed = true
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSimulator creates a Simulator around c.
func NewSimulator(c *cache.Cache, opts ...Option) *Simulator {
	config := c.Config()

	s := &Simulator{
		cache: c,
		stats: stats.NewAccumulator(),
		penalties: stats.Penalties{
			Miss:             config.MissPenalty,
			DirtyWriteback:   config.DirtyWritebackPenalty,
			IncludeWriteback: config.IncludeWritebackPenalty,
		},
		logger: log.New(os.Stderr, "", 0),
		state:  StateRunning,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Cache returns the simulated cache.
func (s *Simulator) Cache() *cache.Cache {
	return s.cache
}

// State returns the driver state.
func (s *Simulator) State() State {
	return s.state
}

// Done returns true once Run has finished.
func (s *Simulator) Done() bool {
	return s.state == StateDone
}

// Counters returns the statistics collected so far.
func (s *Simulator) Counters() stats.Counters {
	return s.stats.Counters()
}

// Skipped returns the number of malformed records skipped.
func (s *Simulator) Skipped() uint64 {
	return s.skipped
}

// Step simulates one record and updates the statistics.
func (s *Simulator) Step(rec loader.Record) AccessEvent {
	tag, setIndex := s.cache.Geometry().Decode(rec.Address)
	result := s.cache.Access(setIndex, tag, rec.IsWrite)
	s.stats.Record(rec.Instructions, rec.IsWrite, result.Hit, result.DirtyWriteback)
	s.seq++

	return AccessEvent{
		Seq:            s.seq,
		IsWrite:        rec.IsWrite,
		Address:        rec.Address,
		SetIndex:       setIndex,
		Tag:            tag,
		Hit:            result.Hit,
		DirtyWriteback: result.DirtyWriteback,
		Instructions:   rec.Instructions,
	}
}

// Run consumes src until it is exhausted and returns the summary. The
// source and all sinks are closed before Run returns, whatever the outcome.
// A run without accesses returns an error wrapping
// stats.ErrDegenerateSummary.
func (s *Simulator) Run(src Source) (summary stats.Summary, err error) {
	s.state = StateRunning

	defer func() {
		s.state = StateDone

		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close trace: %w", closeErr)
		}
		if closeErr := s.closeSinks(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for {
		rec, nextErr := src.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			if s.skipMalformed && errors.Is(nextErr, loader.ErrMalformedRecord) {
				s.skipped++
				s.logger.Printf("warning: skipping %v", nextErr)
				continue
			}
			return stats.Summary{}, nextErr
		}

		event := s.Step(rec)
		for _, sink := range s.sinks {
			if sinkErr := sink.Record(event); sinkErr != nil {
				return stats.Summary{}, fmt.Errorf("failed to record access %d: %w", event.Seq, sinkErr)
			}
		}
	}

	return s.stats.Summary(s.penalties)
}

func (s *Simulator) closeSinks() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.sinks = nil

	return errors.Join(errs...)
}

// Reset clears the cache, the statistics and the sequence counter.
func (s *Simulator) Reset() {
	s.cache.Reset()
	s.stats.Reset()
	s.seq = 0
	s.skipped = 0
	s.state = StateRunning
}
