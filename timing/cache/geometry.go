package cache

import "math/bits"

// Geometry is the address decomposition derived from a validated Config.
type Geometry struct {
	NumSets   int
	NumWays   int
	BlockSize int

	// OffsetBits is log2(BlockSize).
	OffsetBits uint
	// SetBits is log2(NumSets).
	SetBits uint
	// SetMask extracts the set index once the offset is shifted out.
	SetMask uint64
}

// NewGeometry validates the config and derives the address decomposition.
func NewGeometry(config Config) (Geometry, error) {
	if err := config.Validate(); err != nil {
		return Geometry{}, err
	}

	numSets := config.NumSets()

	return Geometry{
		NumSets:    numSets,
		NumWays:    config.Associativity,
		BlockSize:  config.BlockSize,
		OffsetBits: uint(bits.TrailingZeros(uint(config.BlockSize))),
		SetBits:    uint(bits.TrailingZeros(uint(numSets))),
		SetMask:    uint64(numSets - 1),
	}, nil
}

// Decode splits an address into its tag and set index.
func (g Geometry) Decode(addr uint64) (tag uint64, setIndex int) {
	setIndex = int((addr >> g.OffsetBits) & g.SetMask)
	tag = addr >> (g.OffsetBits + g.SetBits)

	return tag, setIndex
}

// Address rebuilds the block-aligned address holding the given tag in the
// given set.
func (g Geometry) Address(tag uint64, setIndex int) uint64 {
	return tag<<(g.OffsetBits+g.SetBits) | uint64(setIndex)<<g.OffsetBits
}

// BlockIndex returns the flat index of a way within the whole cache.
func (g Geometry) BlockIndex(setIndex, wayID int) int {
	return setIndex*g.NumWays + wayID
}
