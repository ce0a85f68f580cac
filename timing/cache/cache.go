// Package cache provides a single-level set-associative cache model built on
// the Akita cache directory.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// DirtyWriteback is true if the access evicted a valid dirty block.
	DirtyWriteback bool
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the block address of the replaced block (if Evicted is true).
	EvictedAddr uint64
	// Way is the way that was hit or filled.
	Way int
}

// BlockState is a snapshot of one block's metadata.
type BlockState struct {
	Tag      uint64
	Valid    bool
	Dirty    bool
	Priority int
}

// Cache holds the tag, valid and dirty state of every block and applies the
// replacement policy. It does not model data.
type Cache struct {
	config   Config
	geometry Geometry

	// Akita cache directory for tag/state management. Block tags hold the
	// decoded tag, not the block address.
	directory *akitacache.DirectoryImpl

	policy ReplacementPolicy
}

// New creates a cache with the given configuration. It returns an error
// wrapping ErrInvalidConfig if the configuration is not a valid geometry.
func New(config Config) (*Cache, error) {
	geometry, err := NewGeometry(config)
	if err != nil {
		return nil, err
	}

	policy, err := newPolicy(config.Policy, geometry)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		config:   config,
		geometry: geometry,
		directory: akitacache.NewDirectory(
			geometry.NumSets,
			geometry.NumWays,
			geometry.BlockSize,
			policy,
		),
		policy: policy,
	}

	if lru, ok := policy.(*LRUPolicy); ok {
		lru.directory = c.directory
	}

	return c, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Geometry returns the address decomposition of the cache.
func (c *Cache) Geometry() Geometry {
	return c.geometry
}

// Policy returns the replacement policy in use.
func (c *Cache) Policy() ReplacementPolicy {
	return c.policy
}

func (c *Cache) set(setIndex int) *akitacache.Set {
	return &c.directory.GetSets()[setIndex]
}

// Access looks up tag in the given set, filling it on a miss, and updates
// the replacement state. setIndex and tag must come from Geometry.Decode.
func (c *Cache) Access(setIndex int, tag uint64, isWrite bool) AccessResult {
	set := c.set(setIndex)

	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == tag {
			if isWrite {
				block.IsDirty = true
			}

			c.policy.Touch(set, block)

			return AccessResult{Hit: true, Way: block.WayID}
		}
	}

	return c.handleMiss(setIndex, tag, isWrite)
}

// AccessAddress decodes addr and performs Access.
func (c *Cache) AccessAddress(addr uint64, isWrite bool) AccessResult {
	tag, setIndex := c.geometry.Decode(addr)
	return c.Access(setIndex, tag, isWrite)
}

func (c *Cache) handleMiss(setIndex int, tag uint64, isWrite bool) AccessResult {
	// The directory maps the rebuilt block address back to setIndex.
	victim := c.directory.FindVictim(c.geometry.Address(tag, setIndex))

	result := AccessResult{Way: victim.WayID}

	if victim.IsValid {
		result.Evicted = true
		result.EvictedAddr = c.geometry.Address(victim.Tag, setIndex)
		result.DirtyWriteback = victim.IsDirty
	}

	victim.Tag = tag
	victim.IsValid = true
	victim.IsDirty = isWrite

	c.policy.Touch(c.set(setIndex), victim)

	return result
}

// Block returns a snapshot of the block at the given set and way.
func (c *Cache) Block(setIndex, wayID int) BlockState {
	block := c.set(setIndex).Blocks[wayID]

	state := BlockState{
		Tag:   block.Tag,
		Valid: block.IsValid,
		Dirty: block.IsDirty,
	}

	if counter, ok := c.policy.(*CounterPolicy); ok {
		state.Priority = counter.Priority(setIndex, wayID)
	}

	return state
}

// Reset invalidates all cache lines and clears the replacement state.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.policy.Reset()
}
