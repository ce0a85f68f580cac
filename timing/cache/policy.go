package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// ReplacementPolicy decides which block of a full set is evicted and how the
// set's replacement state changes after every access.
type ReplacementPolicy interface {
	akitacache.VictimFinder

	// Touch updates the replacement state of the set after block has been
	// hit or filled.
	Touch(set *akitacache.Set, block *akitacache.Block)

	// Reset returns the replacement state to its initial value.
	Reset()
}

// CounterPolicy is an approximate-recency scheme. Each block carries an age
// counter in [0, ways-1]. An access ages every block of the set by one
// (saturating) and resets the accessed block to 0. The victim is the first
// invalid block or, if the set is full, the oldest block with the lowest way
// winning ties.
type CounterPolicy struct {
	geometry Geometry

	// priorities is indexed by Geometry.BlockIndex.
	priorities []int
}

// NewCounterPolicy creates a counter policy for the given geometry.
func NewCounterPolicy(geometry Geometry) *CounterPolicy {
	return &CounterPolicy{
		geometry:   geometry,
		priorities: make([]int, geometry.NumSets*geometry.NumWays),
	}
}

func (p *CounterPolicy) index(block *akitacache.Block) int {
	return p.geometry.BlockIndex(block.SetID, block.WayID)
}

// Priority returns the age counter of a block.
func (p *CounterPolicy) Priority(setID, wayID int) int {
	return p.priorities[p.geometry.BlockIndex(setID, wayID)]
}

// FindVictim returns the block to fill in the set.
func (p *CounterPolicy) FindVictim(set *akitacache.Set) *akitacache.Block {
	for _, block := range set.Blocks {
		if !block.IsValid {
			return block
		}
	}

	victim := set.Blocks[0]
	for _, block := range set.Blocks[1:] {
		if p.priorities[p.index(block)] > p.priorities[p.index(victim)] {
			victim = block
		}
	}

	return victim
}

// Touch ages the set and marks block as the youngest.
func (p *CounterPolicy) Touch(set *akitacache.Set, block *akitacache.Block) {
	for _, b := range set.Blocks {
		i := p.index(b)
		if p.priorities[i] < p.geometry.NumWays-1 {
			p.priorities[i]++
		}
	}

	p.priorities[p.index(block)] = 0
}

// Reset clears all age counters.
func (p *CounterPolicy) Reset() {
	for i := range p.priorities {
		p.priorities[i] = 0
	}
}

// LRUPolicy is a true LRU backed by the directory's LRU queue.
type LRUPolicy struct {
	*akitacache.LRUVictimFinder

	directory *akitacache.DirectoryImpl
}

// NewLRUPolicy creates an LRU policy. The directory is attached when the
// cache is built.
func NewLRUPolicy() *LRUPolicy {
	return &LRUPolicy{
		LRUVictimFinder: akitacache.NewLRUVictimFinder(),
	}
}

// Touch moves block to the most recently used end of its set.
func (p *LRUPolicy) Touch(_ *akitacache.Set, block *akitacache.Block) {
	p.directory.Visit(block)
}

// Reset does nothing; the LRU queues are rebuilt by the directory reset.
func (p *LRUPolicy) Reset() {}

func newPolicy(name string, geometry Geometry) (ReplacementPolicy, error) {
	switch name {
	case "", PolicyCounter:
		return NewCounterPolicy(geometry), nil
	case PolicyLRU:
		return NewLRUPolicy(), nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, name)
	}
}
