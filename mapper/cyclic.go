package mapper

// Cyclic is the interleaved-stripe policy: global segment g = o/S
// goes to owner g mod R at local segment g/R, where S is a multiple
// of the block size B (default S = B).
type Cyclic struct {
	blockSize uint64
	size      uint64
	nInter    int
	nIntra    int
	segSize   uint64
}

// NewCyclic constructs the cyclic policy described in spec.md §4.1.
// segSize == 0 selects blockSize.
func NewCyclic(size, blockSize uint64, nInterRanks, nIntraRanks int, segSize uint64) *Cyclic {
	if segSize == 0 {
		segSize = blockSize
	}
	return &Cyclic{
		blockSize: blockSize,
		size:      size,
		nInter:    nInterRanks,
		nIntra:    nIntraRanks,
		segSize:   segSize,
	}
}

func (p *Cyclic) BlockSize() uint64 { return p.blockSize }

func (p *Cyclic) localSizeImpl() uint64 {
	nBlkG := ceilDiv(p.size, p.segSize)
	nBlkL := ceilDiv(nBlkG, uint64(p.nInter))
	return nBlkL * p.segSize
}

func (p *Cyclic) LocalSize(interRank int) uint64 { return p.localSizeImpl() }

func (p *Cyclic) EffectiveSize() uint64 { return p.localSizeImpl() * uint64(p.nInter) }

func (p *Cyclic) GetSegment(offset uint64) Segment {
	blkIDg := offset / p.segSize
	blkIDl := blkIDg / uint64(p.nInter)
	return Segment{
		Owner:       int(blkIDg % uint64(p.nInter)),
		OffsetBegin: blkIDg * p.segSize,
		OffsetEnd:   (blkIDg + 1) * p.segSize,
		PhysOffset:  blkIDl * p.segSize,
	}
}

// GetNumaSegment returns a single interleave-all sub-segment: the
// cyclic policy never groups blocks by NUMA node.
func (p *Cyclic) GetNumaSegment(interRank int, pmOffset uint64) NumaSegment {
	return NumaSegment{
		Owner:         -1,
		PMOffsetBegin: 0,
		PMOffsetEnd:   p.LocalSize(interRank),
	}
}

func (p *Cyclic) ShouldMapAllHome() bool { return false }
