package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidConfig is returned when a cache configuration cannot describe a
// valid set-associative cache.
var ErrInvalidConfig = errors.New("invalid cache config")

// Replacement policy names accepted in Config.Policy.
const (
	PolicyCounter = "counter"
	PolicyLRU     = "lru"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes.
	Size int `json:"size"`

	// Associativity is the number of blocks per set.
	Associativity int `json:"associativity"`

	// BlockSize in bytes (cache line size).
	BlockSize int `json:"block_size"`

	// MissPenalty is the number of cycles charged for each miss.
	MissPenalty uint64 `json:"miss_penalty"`

	// DirtyWritebackPenalty is the number of cycles charged for evicting a
	// dirty block. It only reaches the cycle count when
	// IncludeWritebackPenalty is set.
	DirtyWritebackPenalty uint64 `json:"dirty_writeback_penalty"`

	// IncludeWritebackPenalty folds dirty writebacks into the total cycles.
	IncludeWritebackPenalty bool `json:"include_writeback_penalty"`

	// Policy selects the replacement policy. Default: "counter".
	Policy string `json:"policy"`
}

// DefaultConfig returns a 16KB direct-mapped cache with 16B lines, a 30 cycle
// miss penalty and a 2 cycle dirty writeback penalty.
func DefaultConfig() *Config {
	return &Config{
		Size:                  16 * 1024, // 16KB
		Associativity:         1,         // direct-mapped
		BlockSize:             16,        // 16B cache line
		MissPenalty:           30,
		DirtyWritebackPenalty: 2,
		Policy:                PolicyCounter,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse cache config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cache config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache config file: %w", err)
	}

	return nil
}

// Validate checks the geometry and penalties. Every returned error wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if !isPowerOfTwo(c.BlockSize) {
		return fmt.Errorf("%w: block_size %d must be a positive power of two",
			ErrInvalidConfig, c.BlockSize)
	}
	if !isPowerOfTwo(c.Associativity) {
		return fmt.Errorf("%w: associativity %d must be a positive power of two",
			ErrInvalidConfig, c.Associativity)
	}
	if c.Size <= 0 {
		return fmt.Errorf("%w: size %d must be > 0", ErrInvalidConfig, c.Size)
	}

	if c.Size%c.BlockSize != 0 {
		return fmt.Errorf("%w: size %d is not divisible by block_size %d",
			ErrInvalidConfig, c.Size, c.BlockSize)
	}
	numBlocks := c.Size / c.BlockSize
	if numBlocks%c.Associativity != 0 {
		return fmt.Errorf("%w: block count %d is not divisible by associativity %d",
			ErrInvalidConfig, numBlocks, c.Associativity)
	}
	if numSets := numBlocks / c.Associativity; !isPowerOfTwo(numSets) {
		return fmt.Errorf("%w: set count %d must be a power of two",
			ErrInvalidConfig, numSets)
	}

	if c.MissPenalty == 0 {
		return fmt.Errorf("%w: miss_penalty must be > 0", ErrInvalidConfig)
	}
	if c.DirtyWritebackPenalty == 0 {
		return fmt.Errorf("%w: dirty_writeback_penalty must be > 0", ErrInvalidConfig)
	}

	switch c.Policy {
	case "", PolicyCounter, PolicyLRU:
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy)
	}

	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// NumSets returns the number of sets described by the configuration.
func (c *Config) NumSets() int {
	return c.Size / c.BlockSize / c.Associativity
}

// NumBlocks returns the total number of blocks in the cache.
func (c *Config) NumBlocks() int {
	return c.Size / c.BlockSize
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
