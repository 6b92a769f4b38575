package ori

import "github.com/itoyori/ityr-go/mapper"

// This file derives the physical layout a Runtime's cache.Addresser
// and coherence.EpochAddresser need from a mapper.Policy, per spec.md
// §4.1/§4.4: block data lives at the segment's physical offset within
// its owner's window; one monotonic 8-byte epoch counter per local
// block lives just past the end of that rank's data region, rounded
// up to a block boundary so the two regions never overlap.

func ceilDivU64(a, b uint64) uint64 { return (a + b - 1) / b }

func roundUpU64(v, align uint64) uint64 { return ((v + align - 1) / align) * align }

// epochRegionBase returns the byte offset, within interRank's window,
// where that rank's epoch-counter array begins.
func epochRegionBase(policy mapper.Policy, interRank int) uint64 {
	return roundUpU64(policy.LocalSize(interRank), policy.BlockSize())
}

// requiredWindowSize returns the total per-rank window size (data
// region plus epoch-counter region) a transport.WindowFactory must
// allocate for interRank under policy.
func requiredWindowSize(policy mapper.Policy, interRank int) uint64 {
	base := epochRegionBase(policy, interRank)
	nBlocks := ceilDivU64(policy.LocalSize(interRank), policy.BlockSize())
	return base + nBlocks*8
}

// RequiredWindowSize is the exported form of requiredWindowSize: the
// size a caller's api.WindowFactory must give interRank's window
// before that window is handed to NewRuntime.
func RequiredWindowSize(policy mapper.Policy, interRank int) uint64 {
	return requiredWindowSize(policy, interRank)
}

// blockDataOffset returns blockID's physical byte offset within its
// owning rank's data region.
func blockDataOffset(policy mapper.Policy, blockID uint64) (owner int, offset uint64) {
	blockSize := policy.BlockSize()
	seg := policy.GetSegment(blockID * blockSize)
	return seg.Owner, seg.PhysOffset + (blockID*blockSize - seg.OffsetBegin)
}

// blockEpochOffset returns blockID's epoch-counter byte offset within
// its owning rank's window (in the epoch region, not the data region).
func blockEpochOffset(policy mapper.Policy, blockID uint64) uint64 {
	owner, dataOffset := blockDataOffset(policy, blockID)
	localBlockIndex := dataOffset / policy.BlockSize()
	return epochRegionBase(policy, owner) + localBlockIndex*8
}
