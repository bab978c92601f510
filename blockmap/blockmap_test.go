package blockmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvsfs/vvsfs/blockmap"
	"github.com/vvsfs/vvsfs/layout"
	"github.com/vvsfs/vvsfs/volume"
	"github.com/xaionaro-go/bytesextra"
)

func newTestVolume(t *testing.T) *volume.Volume {
	t.Helper()
	backing := bytesextra.NewReadWriteSeeker(make([]byte, layout.TotalBlocks*layout.BlockSize))
	v, err := volume.Format(backing)
	require.NoError(t, err)
	return v
}

// TestGetOrCreate__FillsDirectSlotsThenIndirect appends blocks one at a
// time and checks that the direct slots fill first, the indirect block
// is allocated lazily on the 15th block, and every appended block is
// density-packed (property 5, spec.md §8): idb_count always equals the
// number of non-hole entries actually addressable.
func TestGetOrCreate__FillsDirectSlotsThenIndirect(t *testing.T) {
	v := newTestVolume(t)
	var idbCount uint32
	var iData [layout.NInodeSlots]uint32

	const numBlocks = 20
	positions := make([]uint32, 0, numBlocks)
	for b := uint32(0); b < numBlocks; b++ {
		pos, err := blockmap.GetOrCreate(v, &idbCount, &iData, b, true)
		require.Nil(t, err)
		require.NotZero(t, pos)
		positions = append(positions, pos)
		assert.Equal(t, b+1, idbCount)
	}

	for b := uint32(0); b < layout.NDirectSlots; b++ {
		assert.Equal(t, positions[b], iData[b])
	}
	assert.NotZero(t, iData[layout.NDirectSlots])

	for b := uint32(0); b < numBlocks; b++ {
		got, err := blockmap.Index(v, idbCount, iData, b)
		require.Nil(t, err)
		assert.Equal(t, positions[b], got)
	}
}

func TestGetOrCreate__SparseReadPastEndReturnsZero(t *testing.T) {
	v := newTestVolume(t)
	var idbCount uint32
	var iData [layout.NInodeSlots]uint32

	_, err := blockmap.GetOrCreate(v, &idbCount, &iData, 0, true)
	require.Nil(t, err)

	pos, err := blockmap.GetOrCreate(v, &idbCount, &iData, 5, false)
	require.Nil(t, err)
	assert.Zero(t, pos)
}

func TestGetOrCreate__TooBigFails(t *testing.T) {
	v := newTestVolume(t)
	var idbCount uint32 = layout.MaxInodeBlocks
	var iData [layout.NInodeSlots]uint32

	_, err := blockmap.GetOrCreate(v, &idbCount, &iData, layout.MaxInodeBlocks, true)
	require.NotNil(t, err)
}

// TestShiftBack__DirectOnlyCompaction removes the middle block of a
// three-block, direct-only inode and checks the tail shifts down and the
// freed slot zeroes out.
func TestShiftBack__DirectOnlyCompaction(t *testing.T) {
	v := newTestVolume(t)
	var idbCount uint32
	var iData [layout.NInodeSlots]uint32

	for b := uint32(0); b < 3; b++ {
		_, err := blockmap.GetOrCreate(v, &idbCount, &iData, b, true)
		require.Nil(t, err)
	}
	last := iData[2]
	v.DataBitmap.FreeBlock(iData[1])

	err := blockmap.ShiftBack(v, &idbCount, &iData, 1)
	require.Nil(t, err)
	assert.Equal(t, uint32(2), idbCount)
	assert.Equal(t, last, iData[1])
	assert.Zero(t, iData[2])
}

// TestShiftBack__CrossRegionPromotion drives an inode past the direct
// region into the indirect block, then frees a low direct block. This
// exercises the cross-region branch of ShiftBack (spec.md §4.3.5): the
// indirect block's first pointer is promoted into i_data[13], the
// direct slots above the freed one shift down, and the remaining
// indirect pointers shift down within the indirect block.
func TestShiftBack__CrossRegionPromotion(t *testing.T) {
	v := newTestVolume(t)
	var idbCount uint32
	var iData [layout.NInodeSlots]uint32

	const numBlocks = 17 // 14 direct + 3 indirect payload blocks
	positions := make([]uint32, 0, numBlocks)
	for b := uint32(0); b < numBlocks; b++ {
		pos, err := blockmap.GetOrCreate(v, &idbCount, &iData, b, true)
		require.Nil(t, err)
		positions = append(positions, pos)
	}
	require.Equal(t, uint32(numBlocks), idbCount)

	v.DataBitmap.FreeBlock(iData[3])
	err := blockmap.ShiftBack(v, &idbCount, &iData, 3)
	require.Nil(t, err)

	assert.Equal(t, uint32(numBlocks-1), idbCount)

	// Direct slots 4..13 shifted down into 3..12.
	for i := uint32(3); i < layout.NDirectSlots-1; i++ {
		assert.Equalf(t, positions[i+1], iData[i], "iData[%d]", i)
	}
	// The indirect block's first pointer (logical block 14) was promoted
	// into the last direct slot.
	assert.Equal(t, positions[14], iData[layout.NDirectSlots-1])

	// The remaining indirect pointers (logical blocks 15, 16) shifted
	// down to fill where the promoted pointer used to be.
	got14, err := blockmap.Index(v, idbCount, iData, 14)
	require.Nil(t, err)
	assert.Equal(t, positions[15], got14)

	got15, err := blockmap.Index(v, idbCount, iData, 15)
	require.Nil(t, err)
	assert.Equal(t, positions[16], got15)
}

// TestShiftBack__CollapsesIndirectBlockWhenEmptied drives an inode to 15
// blocks (direct full, one indirect payload block) then removes the
// payload block and checks the indirect block itself is freed and
// i_data[14] clears.
func TestShiftBack__CollapsesIndirectBlockWhenEmptied(t *testing.T) {
	v := newTestVolume(t)
	var idbCount uint32
	var iData [layout.NInodeSlots]uint32

	for b := uint32(0); b < 15; b++ {
		_, err := blockmap.GetOrCreate(v, &idbCount, &iData, b, true)
		require.Nil(t, err)
	}
	require.NotZero(t, iData[layout.NDirectSlots])

	freed, err := blockmap.Index(v, idbCount, iData, 14)
	require.Nil(t, err)
	v.DataBitmap.FreeBlock(freed)

	err = blockmap.ShiftBack(v, &idbCount, &iData, 14)
	require.Nil(t, err)
	assert.Equal(t, uint32(14), idbCount)
	assert.Zero(t, iData[layout.NDirectSlots])
}
