package bitmap

import "github.com/vvsfs/vvsfs/blockio"

// DataBitmap tracks which data-block positions are in use. A reserved
// position p corresponds to physical block blockOffset+p; unlike
// InodeBitmap there is no +1 bias, since data-bitmap positions are used
// directly as i_block values (spec.md §3.2).
type DataBitmap struct {
	*Bitmap
	blockOffset blockio.PhysicalBlock
}

// NewDataBitmap wraps data as a DataBitmap. blockOffset is the physical
// block number that position 0 maps to (DATA_BLOCK_OFF).
func NewDataBitmap(data []byte, blockOffset blockio.PhysicalBlock) *DataBitmap {
	return &DataBitmap{Bitmap: New(data), blockOffset: blockOffset}
}

// ReserveBlock reserves a free data-bitmap position and returns it. 0
// means the bitmap is full.
func (b *DataBitmap) ReserveBlock() uint32 {
	return uint32(b.Reserve())
}

// FreeBlock releases a data-bitmap position previously returned by
// ReserveBlock.
func (b *DataBitmap) FreeBlock(position uint32) {
	b.Free(int(position))
}

// ToPhysicalBlock converts a data-bitmap position (as stored in an
// inode's i_block array) to the physical block number on the volume.
func (b *DataBitmap) ToPhysicalBlock(position uint32) blockio.PhysicalBlock {
	return b.blockOffset + blockio.PhysicalBlock(position)
}
