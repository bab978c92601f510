package inode

import (
	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/blockio"
	"github.com/vvsfs/vvsfs/layout"
	"github.com/vvsfs/vvsfs/volume"
)

// location returns the inode-table block and byte offset for ino,
// per spec.md §3.3's addressing rule.
func location(ino uint32) (blockio.PhysicalBlock, int) {
	zeroBased := int(ino - 1)
	block := layout.InodeBlockOff + zeroBased/layout.InodesPerBlock
	offset := (zeroBased % layout.InodesPerBlock) * layout.InodeSize
	return blockio.PhysicalBlock(block), offset
}

// ReadRaw reads the on-disk record for ino from v's inode table.
func ReadRaw(v *volume.Volume, ino uint32) (Raw, vvsfs.DriverError) {
	block, offset := location(ino)
	data, err := v.ReadBlock(block)
	if err != nil {
		return Raw{}, err
	}
	return Unmarshal(data[offset : offset+layout.InodeSize]), nil
}

// WriteRaw writes r to ino's slot in v's inode table. It reads the whole
// block, patches the slot, and writes the block back, since the table
// packs InodesPerBlock records per block.
func WriteRaw(v *volume.Volume, ino uint32, r Raw) vvsfs.DriverError {
	block, offset := location(ino)
	data, err := v.ReadBlock(block)
	if err != nil {
		return err
	}
	copy(data[offset:offset+layout.InodeSize], r.Marshal())
	return v.WriteBlock(block, data)
}
