package blockmap

import (
	"encoding/binary"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/blockio"
	"github.com/vvsfs/vvsfs/layout"
	"github.com/vvsfs/vvsfs/volume"
)

// PointersPerBlock is the number of pointer slots the indirect block
// holds: layout.BlockSize/4.
const PointersPerBlock = layout.BlockSize / 4

// readIndirect reads the 256 big-endian u32 pointers packed into the
// indirect block at physical block pos. Pointer storage is explicitly
// big-endian even though every other inode field is host-order
// (spec.md §3.2, §6.1) — this is the one place that asymmetry matters.
func readIndirect(v *volume.Volume, pos blockio.PhysicalBlock) ([PointersPerBlock]uint32, vvsfs.DriverError) {
	var ptrs [PointersPerBlock]uint32
	data, err := v.ReadBlock(pos)
	if err != nil {
		return ptrs, err
	}
	for i := range ptrs {
		ptrs[i] = binary.BigEndian.Uint32(data[4*i:])
	}
	return ptrs, nil
}

// writeIndirect persists ptrs to the indirect block at physical block
// pos.
func writeIndirect(v *volume.Volume, pos blockio.PhysicalBlock, ptrs [PointersPerBlock]uint32) vvsfs.DriverError {
	data := make([]byte, layout.BlockSize)
	for i, p := range ptrs {
		binary.BigEndian.PutUint32(data[4*i:], p)
	}
	return v.WriteBlock(pos, data)
}
