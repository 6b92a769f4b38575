// Package mapper implements the pure global-offset-to-owner mapping
// functions from spec.md §4.1, grounded on
// ityr::ori::mem_mapper::{block,cyclic,block_adws}. A Policy is chosen
// once per collective allocation (spec.md §9 "Polymorphism over mapper
// policies": dispatch once, not per lookup) and is then a pure
// function for the lifetime of that allocation.
package mapper

// Segment is a contiguous run of blocks owned by a single rank,
// matching spec.md §3's Segment data model.
type Segment struct {
	Owner       int
	OffsetBegin uint64
	OffsetEnd   uint64
	PhysOffset  uint64
}

// NumaSegment is a NUMA sub-segment within one rank's local physical
// span. Owner == -1 encodes "interleave across all NUMA nodes".
type NumaSegment struct {
	Owner        int
	PMOffsetBegin uint64
	PMOffsetEnd   uint64
}

// Policy is the mapper contract: a pure function from a global offset
// to (owner, block range, physical offset), plus the NUMA
// sub-mapping and the home-materialisation hint.
type Policy interface {
	// BlockSize returns the coherence unit size B.
	BlockSize() uint64

	// LocalSize returns the byte size of interRank's local share.
	LocalSize(interRank int) uint64

	// EffectiveSize returns the total addressable size after rounding
	// up to whole blocks.
	EffectiveSize() uint64

	// GetSegment returns the segment containing offset. Requires
	// 0 <= offset < EffectiveSize().
	GetSegment(offset uint64) Segment

	// GetNumaSegment returns the NUMA sub-segment containing pmOffset
	// within interRank's local physical span.
	GetNumaSegment(interRank int, pmOffset uint64) NumaSegment

	// ShouldMapAllHome reports whether a rank's entire local share is
	// contiguous in its backing store (true for block/reverse-block)
	// or scattered into per-block stripes (false for cyclic).
	ShouldMapAllHome() bool
}

// Kind selects a mapper policy at allocation time.
type Kind int

const (
	KindBlock Kind = iota
	KindCyclic
	KindReverseBlock
)

// New dispatches once per allocation to the concrete Policy for kind.
// cyclicSegSize is ignored for non-cyclic kinds; 0 selects blockSize
// as the cyclic segment size.
func New(kind Kind, size, blockSize uint64, nInterRanks, nIntraRanks int, cyclicSegSize uint64) Policy {
	switch kind {
	case KindCyclic:
		return NewCyclic(size, blockSize, nInterRanks, nIntraRanks, cyclicSegSize)
	case KindReverseBlock:
		return NewReverseBlock(size, blockSize, nInterRanks, nIntraRanks)
	default:
		return NewBlock(size, blockSize, nInterRanks, nIntraRanks)
	}
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
