// Package ori is the top-level DSM runtime, named after the
// ityr::ori namespace in the original Itoyori runtime this repository
// is a Go port of. It wires together topology, the memory mapper, the
// home mapper, the block cache, the coherence controller, and the
// allocator behind the explicit init/teardown Runtime object spec.md
// §9 calls for ("wrap them as a context object ... so test harnesses
// can stand up multiple runtimes in one process"), and implements the
// checkout/check-in interface (spec.md §4.5) and collective allocator
// (spec.md §4.6).
package ori

import (
	"github.com/itoyori/ityr-go/api"
	"github.com/itoyori/ityr-go/mapper"
)

// Config is the typed, closed configuration spec.md §6 enumerates.
// Unlike control.ConfigStore's open-ended map-of-any store (built for
// the teacher's dynamically reloadable server configuration), this
// runtime's configuration surface is small and known ahead of time,
// so it is a concrete struct validated once at startup.
type Config struct {
	// GlobalSize is the total size of the collectively-reserved global
	// address space the memory mapper partitions, spec.md §4.1. Every
	// rank must pass the same value.
	GlobalSize uint64
	// BlockSize is the coherence unit B, a compile-time power of two
	// in the original runtime; here validated at Runtime construction.
	BlockSize uint64
	// MapperPolicy selects block, cyclic, or reverse_block.
	MapperPolicy mapper.Kind
	// CyclicSegmentSize is S for the cyclic policy; 0 selects BlockSize.
	CyclicSegmentSize uint64
	// CacheSize is the total number of block-sized slabs the per-rank
	// cache may hold.
	CacheSize int
	// EnableSharedMemory toggles home aliasing for co-located ranks.
	EnableSharedMemory bool
	// NumaEnabled toggles NUMA-aware home sub-mapping and binding.
	NumaEnabled bool
	// VmRetryMax bounds the virtual-memory reservation retry loop;
	// 0 selects vmem.DefaultMaxRetries.
	VmRetryMax int
}

// Validate checks the invariants spec.md §6 implies: a positive global
// size, a power-of-two block size, a positive cache size, and a cyclic
// segment size that is a multiple of the block size when set.
func (c Config) Validate() error {
	if c.GlobalSize == 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "ori: global_size must be positive")
	}
	if c.BlockSize == 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "ori: block_size must be a power of two").
			WithContext("block_size", c.BlockSize)
	}
	if c.CacheSize <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "ori: cache_size must be positive").
			WithContext("cache_size", c.CacheSize)
	}
	if c.MapperPolicy == mapper.KindCyclic && c.CyclicSegmentSize != 0 && c.CyclicSegmentSize%c.BlockSize != 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "ori: cyclic_segment_size must be a multiple of block_size").
			WithContext("cyclic_segment_size", c.CyclicSegmentSize).WithContext("block_size", c.BlockSize)
	}
	return nil
}

// DefaultConfig returns a Config with spec.md §6's stated defaults:
// 64 KiB blocks, block-policy mapping, shared memory and NUMA on, and
// vmem.DefaultMaxRetries retries.
func DefaultConfig() Config {
	return Config{
		GlobalSize:         1 << 34, // 16 GiB
		BlockSize:          64 * 1024,
		MapperPolicy:       mapper.KindBlock,
		CacheSize:          64,
		EnableSharedMemory: true,
		NumaEnabled:        true,
		VmRetryMax:         100,
	}
}
