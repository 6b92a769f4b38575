package mapper

// Block is the contiguous-partition policy: N = ceil(size/B) blocks
// split evenly across the inter-node ranks.
type Block struct {
	blockSize uint64
	nInter    int
	nIntra    int
	nBlk      uint64
}

// NewBlock constructs the block policy described in spec.md §4.1.
func NewBlock(size, blockSize uint64, nInterRanks, nIntraRanks int) *Block {
	return &Block{
		blockSize: blockSize,
		nInter:    nInterRanks,
		nIntra:    nIntraRanks,
		nBlk:      ceilDiv(size, blockSize),
	}
}

func (p *Block) BlockSize() uint64 { return p.blockSize }

func (p *Block) EffectiveSize() uint64 { return p.nBlk * p.blockSize }

func (p *Block) segRange(segID int) (uint64, uint64) {
	blkB := ceilDiv(uint64(segID)*p.nBlk, uint64(p.nInter))
	blkE := ceilDiv(uint64(segID+1)*p.nBlk, uint64(p.nInter))
	return blkB, blkE
}

func (p *Block) LocalSize(interRank int) uint64 {
	blkB, blkE := p.segRange(interRank)
	return maxU64(1, blkE-blkB) * p.blockSize
}

func (p *Block) GetSegment(offset uint64) Segment {
	blkID := offset / p.blockSize
	segID := int(blkID * uint64(p.nInter) / p.nBlk)
	blkB, blkE := p.segRange(segID)
	return Segment{
		Owner:       segID,
		OffsetBegin: blkB * p.blockSize,
		OffsetEnd:   blkE * p.blockSize,
		PhysOffset:  0,
	}
}

func (p *Block) GetNumaSegment(interRank int, pmOffset uint64) NumaSegment {
	nNumaBlk := ceilDiv(p.LocalSize(interRank), p.blockSize)

	blkID := pmOffset / p.blockSize
	segID := int(blkID * uint64(p.nIntra) / nNumaBlk)

	blkB := ceilDiv(uint64(segID)*nNumaBlk, uint64(p.nIntra))
	blkE := ceilDiv(uint64(segID+1)*nNumaBlk, uint64(p.nIntra))

	return NumaSegment{
		Owner:         segID,
		PMOffsetBegin: blkB * p.blockSize,
		PMOffsetEnd:   blkE * p.blockSize,
	}
}

func (p *Block) ShouldMapAllHome() bool { return true }
