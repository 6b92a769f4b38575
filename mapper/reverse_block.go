package mapper

// ReverseBlock is the block policy with the owner index reflected
// (R - r - 1), so a scheduler that conventionally drains work from
// the highest rank sees sequential home data. Grounded on
// ityr::ori::mem_mapper::block_adws.
type ReverseBlock struct {
	blockSize uint64
	nInter    int
	nIntra    int
	nBlk      uint64
}

// NewReverseBlock constructs the reverse-block policy.
func NewReverseBlock(size, blockSize uint64, nInterRanks, nIntraRanks int) *ReverseBlock {
	return &ReverseBlock{
		blockSize: blockSize,
		nInter:    nInterRanks,
		nIntra:    nIntraRanks,
		nBlk:      ceilDiv(size, blockSize),
	}
}

func (p *ReverseBlock) BlockSize() uint64 { return p.blockSize }

func (p *ReverseBlock) EffectiveSize() uint64 { return p.nBlk * p.blockSize }

// segRange uses the same ceiling division as Block.segRange, so every
// segment covers exactly the block range Block assigns it; only the
// owner index is reflected.
func (p *ReverseBlock) segRange(segID int) (uint64, uint64) {
	blkB := ceilDiv(uint64(segID)*p.nBlk, uint64(p.nInter))
	blkE := ceilDiv(uint64(segID+1)*p.nBlk, uint64(p.nInter))
	return blkB, blkE
}

func (p *ReverseBlock) LocalSize(interRank int) uint64 {
	segID := p.nInter - interRank - 1
	blkB, blkE := p.segRange(segID)
	return maxU64(1, blkE-blkB) * p.blockSize
}

func (p *ReverseBlock) GetSegment(offset uint64) Segment {
	blkID := offset / p.blockSize
	segID := int(blkID * uint64(p.nInter) / p.nBlk)
	blkB, blkE := p.segRange(segID)
	return Segment{
		Owner:       p.nInter - segID - 1,
		OffsetBegin: blkB * p.blockSize,
		OffsetEnd:   blkE * p.blockSize,
		PhysOffset:  0,
	}
}

func (p *ReverseBlock) GetNumaSegment(interRank int, pmOffset uint64) NumaSegment {
	nNumaBlk := ceilDiv(p.LocalSize(interRank), p.blockSize)

	blkID := pmOffset / p.blockSize
	segID := int(((blkID+1)*uint64(p.nIntra)+nNumaBlk-1)/nNumaBlk) - 1

	blkB := uint64(segID) * nNumaBlk / uint64(p.nIntra)
	blkE := uint64(segID+1) * nNumaBlk / uint64(p.nIntra)

	return NumaSegment{
		Owner:         p.nIntra - segID - 1,
		PMOffsetBegin: blkB * p.blockSize,
		PMOffsetEnd:   blkE * p.blockSize,
	}
}

func (p *ReverseBlock) ShouldMapAllHome() bool { return true }
