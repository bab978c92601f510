// Package blockmap translates an inode's logical block index into a
// physical data-block position via its direct slots and single indirect
// block (spec.md §4.2), and maintains the block-address compaction
// invariants when a logical block is freed (spec.md §4.3.5).
package blockmap

import (
	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/layout"
	"github.com/vvsfs/vvsfs/volume"
)

// Index returns the data-bitmap position of logical block b of an inode
// with the given data-block count and i_data array. For b < 14 this
// reads i_data[b] directly; otherwise it loads the indirect block and
// reads the big-endian pointer at offset (b-14)*4.
func Index(v *volume.Volume, idbCount uint32, iData [layout.NInodeSlots]uint32, b uint32) (uint32, vvsfs.DriverError) {
	if b < layout.NDirectSlots {
		return iData[b], nil
	}

	ptrs, err := readIndirect(v, v.DataBitmap.ToPhysicalBlock(iData[layout.NDirectSlots]))
	if err != nil {
		return 0, err
	}
	return ptrs[b-layout.NDirectSlots], nil
}

// GetOrCreate resolves logical block b, optionally allocating it if it is
// exactly the next block past the end of the inode (spec.md §4.2).
// Returns 0 with no error for a sparse read past EOF or a non-creating
// call at EOF. idbCount and iData are mutated in place on a successful
// allocation.
func GetOrCreate(
	v *volume.Volume,
	idbCount *uint32,
	iData *[layout.NInodeSlots]uint32,
	b uint32,
	create bool,
) (uint32, vvsfs.DriverError) {
	if b >= layout.MaxInodeBlocks {
		return 0, vvsfs.ErrFileTooLarge
	}

	if b < *idbCount {
		return Index(v, *idbCount, *iData, b)
	}
	if b > *idbCount {
		return 0, nil
	}
	// b == *idbCount: the terminal block — either return "nothing there"
	// or allocate, per the exact sequence in spec.md §4.2.
	if !create {
		return 0, nil
	}

	newPos := v.DataBitmap.ReserveBlock()
	if newPos == 0 {
		return 0, vvsfs.ErrNoSpace
	}

	if b < layout.NDirectSlots {
		iData[b] = newPos
		*idbCount++
		return newPos, nil
	}

	if *idbCount < layout.NInodeSlots {
		// No indirect block yet: repurpose newPos as the indirect block,
		// zeroed, and reserve a second block for the actual payload.
		if err := writeIndirect(v, v.DataBitmap.ToPhysicalBlock(newPos), [PointersPerBlock]uint32{}); err != nil {
			v.DataBitmap.FreeBlock(newPos)
			return 0, err
		}

		payloadPos := v.DataBitmap.ReserveBlock()
		if payloadPos == 0 {
			v.DataBitmap.FreeBlock(newPos)
			return 0, vvsfs.ErrNoSpace
		}

		ptrs, err := readIndirect(v, v.DataBitmap.ToPhysicalBlock(newPos))
		if err != nil {
			v.DataBitmap.FreeBlock(newPos)
			v.DataBitmap.FreeBlock(payloadPos)
			return 0, err
		}
		ptrs[b-layout.NDirectSlots] = payloadPos
		if err := writeIndirect(v, v.DataBitmap.ToPhysicalBlock(newPos), ptrs); err != nil {
			v.DataBitmap.FreeBlock(newPos)
			v.DataBitmap.FreeBlock(payloadPos)
			return 0, err
		}

		iData[layout.NDirectSlots] = newPos
		*idbCount++
		return payloadPos, nil
	}

	// Indirect block already exists: newPos is the payload for this
	// logical block.
	indirectPos := iData[layout.NDirectSlots]
	ptrs, err := readIndirect(v, v.DataBitmap.ToPhysicalBlock(indirectPos))
	if err != nil {
		v.DataBitmap.FreeBlock(newPos)
		return 0, err
	}
	ptrs[b-layout.NDirectSlots] = newPos
	if err := writeIndirect(v, v.DataBitmap.ToPhysicalBlock(indirectPos), ptrs); err != nil {
		v.DataBitmap.FreeBlock(newPos)
		return 0, err
	}

	*idbCount++
	return newPos, nil
}

// FreeAll releases every data block belonging to an inode with the given
// block count and i_data array: direct blocks, indirect payload blocks,
// and the indirect block itself (spec.md §4.5 free_all_data_blocks).
func FreeAll(v *volume.Volume, idbCount uint32, iData [layout.NInodeSlots]uint32) vvsfs.DriverError {
	directCount := idbCount
	if directCount > layout.NDirectSlots {
		directCount = layout.NDirectSlots
	}
	for i := uint32(0); i < directCount; i++ {
		v.DataBitmap.FreeBlock(iData[i])
	}

	if idbCount <= layout.NDirectSlots {
		return nil
	}

	indirectPos := iData[layout.NDirectSlots]
	ptrs, err := readIndirect(v, v.DataBitmap.ToPhysicalBlock(indirectPos))
	if err != nil {
		return err
	}

	payloadCount := idbCount - layout.NDirectSlots
	for k := uint32(0); k < payloadCount; k++ {
		v.DataBitmap.FreeBlock(ptrs[k])
	}
	v.DataBitmap.FreeBlock(indirectPos)
	return nil
}

// ShiftBack compacts an inode's block-address arrays after logical block
// blockIndex has already been freed from an inode whose block count was N
// (i.e. *idbCount == N on entry). It handles all three regions spec.md
// §4.3.5 describes — direct-only, indirect-only, and the cross-region
// promotion of the indirect block's first pointer — decrementing
// *idbCount exactly once.
func ShiftBack(
	v *volume.Volume,
	idbCount *uint32,
	iData *[layout.NInodeSlots]uint32,
	blockIndex uint32,
) vvsfs.DriverError {
	n := *idbCount

	switch {
	case n <= layout.NDirectSlots:
		for i := blockIndex; i+1 < n; i++ {
			iData[i] = iData[i+1]
		}
		iData[n-1] = 0

	case blockIndex >= layout.NDirectSlots:
		indirectPos := iData[layout.NDirectSlots]
		phys := v.DataBitmap.ToPhysicalBlock(indirectPos)
		ptrs, err := readIndirect(v, phys)
		if err != nil {
			return err
		}

		start := blockIndex - layout.NDirectSlots + 1
		end := n - layout.NDirectSlots
		for k := start; k < end; k++ {
			ptrs[k-1] = ptrs[k]
		}

		if n-1 == layout.NDirectSlots {
			v.DataBitmap.FreeBlock(indirectPos)
			iData[layout.NDirectSlots] = 0
		} else {
			ptrs[end-1] = 0
			if err := writeIndirect(v, phys, ptrs); err != nil {
				return err
			}
		}

	default: // blockIndex < NDirectSlots && n > NDirectSlots: cross-region promotion
		indirectPos := iData[layout.NDirectSlots]
		phys := v.DataBitmap.ToPhysicalBlock(indirectPos)
		ptrs, err := readIndirect(v, phys)
		if err != nil {
			return err
		}

		replacement := ptrs[0]
		for i := blockIndex; i+1 < layout.NDirectSlots; i++ {
			iData[i] = iData[i+1]
		}
		iData[layout.NDirectSlots-1] = replacement

		payloadCount := n - layout.NDirectSlots
		for k := uint32(1); k < payloadCount; k++ {
			ptrs[k-1] = ptrs[k]
		}

		if n-1 == layout.NDirectSlots {
			v.DataBitmap.FreeBlock(indirectPos)
			iData[layout.NDirectSlots] = 0
		} else {
			ptrs[payloadCount-1] = 0
			if err := writeIndirect(v, phys, ptrs); err != nil {
				return err
			}
		}
	}

	*idbCount = n - 1
	return nil
}
