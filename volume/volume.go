// Package volume owns the mounted VVSFS image: the backing block stream,
// the superblock, and the two in-memory bitmaps mirrored from blocks 1-3.
// Every other package reaches the disk only through a *Volume.
package volume

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/bitmap"
	"github.com/vvsfs/vvsfs/blockio"
	"github.com/vvsfs/vvsfs/layout"
)

// Volume is a mounted VVSFS image.
type Volume struct {
	stream      blockio.Stream
	InodeBitmap *bitmap.InodeBitmap
	DataBitmap  *bitmap.DataBitmap
}

// Open reads an existing VVSFS image from backing and validates its
// magic number.
func Open(backing io.ReadWriteSeeker) (*Volume, vvsfs.DriverError) {
	stream := blockio.NewStream(backing, layout.TotalBlocks, layout.BlockSize, 0)

	superblock, err := stream.ReadBlocks(layout.SuperblockBlock, 1)
	if err != nil {
		return nil, vvsfs.ErrIOFailed.Wrap(err)
	}
	if binary.LittleEndian.Uint32(superblock[:4]) != layout.Magic {
		return nil, vvsfs.ErrInvalidFileSystem.WithMessage("bad magic number")
	}

	imapBlock, err := stream.ReadBlocks(layout.InodeBitmapBlock, 1)
	if err != nil {
		return nil, vvsfs.ErrIOFailed.Wrap(err)
	}
	dmapBlocks, err := stream.ReadBlocks(layout.DataBitmapBlock, layout.DataBitmapBlocks)
	if err != nil {
		return nil, vvsfs.ErrIOFailed.Wrap(err)
	}

	return &Volume{
		stream:      stream,
		InodeBitmap: bitmap.NewInodeBitmap(imapBlock[:layout.ImapSize]),
		DataBitmap:  bitmap.NewDataBitmap(dmapBlocks[:layout.DmapSize], layout.DataBlockOff),
	}, nil
}

// Format writes a fresh VVSFS image to backing: the magic superblock, both
// bitmaps with position 0 reserved, a root directory inode occupying the
// first data block, and zeroed remaining blocks. Grounded on
// mkfs.vvsfs.c's write_disk sequence.
func Format(backing io.ReadWriteSeeker) (*Volume, vvsfs.DriverError) {
	stream := blockio.NewStream(backing, layout.TotalBlocks, layout.BlockSize, 0)

	superblock := make([]byte, layout.BlockSize)
	binary.LittleEndian.PutUint32(superblock[:4], layout.Magic)
	if err := stream.WriteBlocks(layout.SuperblockBlock, superblock); err != nil {
		return nil, vvsfs.ErrIOFailed.Wrap(err)
	}

	imapBlock := make([]byte, layout.BlockSize)
	dmapBlocks := make([]byte, layout.BlockSize*layout.DataBitmapBlocks)

	// New() marks position 0 of each bitmap reserved in place, matching
	// mkfs.vvsfs.c setting imap[0]/dmap[0] to 1<<7 before writing them out.
	inodeBitmap := bitmap.NewInodeBitmap(imapBlock[:layout.ImapSize])
	dataBitmap := bitmap.NewDataBitmap(dmapBlocks[:layout.DmapSize], layout.DataBlockOff)

	if err := stream.WriteBlocks(layout.InodeBitmapBlock, imapBlock); err != nil {
		return nil, vvsfs.ErrIOFailed.Wrap(err)
	}
	if err := stream.WriteBlocks(layout.DataBitmapBlock, dmapBlocks); err != nil {
		return nil, vvsfs.ErrIOFailed.Wrap(err)
	}

	v := &Volume{stream: stream, InodeBitmap: inodeBitmap, DataBitmap: dataBitmap}

	if err := v.writeRootInode(); err != nil {
		return nil, err
	}

	zeroBlock := make([]byte, layout.BlockSize)
	for block := blockio.PhysicalBlock(layout.InodeBlockOff + 1); uint(block) < layout.TotalBlocks; block++ {
		if err := stream.WriteBlocks(block, zeroBlock); err != nil {
			return nil, vvsfs.ErrIOFailed.Wrap(err)
		}
	}

	return v, nil
}

// rootInodeFieldOffsets mirrors spec.md §3.2's leading-field layout:
// i_mode, i_size, i_links_count, i_data_blocks_count, i_block[15],
// i_uid, i_gid, i_atime, i_mtime, i_ctime, i_rdev.
const (
	offMode    = 0
	offSize    = 4
	offNlinks  = 8
	offDBCount = 12
	offBlocks  = 16
	offUid     = offBlocks + 4*layout.NInodeSlots
	offGid     = offUid + 4
	offAtime   = offGid + 4
	offMtime   = offAtime + 4
	offCtime   = offMtime + 4
)

// writeRootInode writes the root directory inode (ino 1) directly into
// the first inode-table slot, occupying data-bitmap position 0 (physical
// block DataBlockOff). mkfs.vvsfs.c does this without going through the
// dynamic allocator: the root inode's position is fixed by convention,
// not reserved at runtime the way later inodes are.
func (v *Volume) writeRootInode() vvsfs.DriverError {
	now := uint32(time.Now().Unix())

	raw := make([]byte, layout.InodeSize)
	mode := uint32(vvsfs.S_IFDIR | vvsfs.S_IRWXU | vvsfs.S_IRWXG | vvsfs.S_IRWXO)
	binary.LittleEndian.PutUint32(raw[offMode:], mode)
	binary.LittleEndian.PutUint32(raw[offSize:], 0)
	binary.LittleEndian.PutUint32(raw[offNlinks:], 1)
	binary.LittleEndian.PutUint32(raw[offDBCount:], 1)
	binary.LittleEndian.PutUint32(raw[offBlocks:], 0) // i_block[0] = data-bitmap position 0
	binary.LittleEndian.PutUint32(raw[offUid:], 0)
	binary.LittleEndian.PutUint32(raw[offGid:], 0)
	binary.LittleEndian.PutUint32(raw[offAtime:], now)
	binary.LittleEndian.PutUint32(raw[offMtime:], now)
	binary.LittleEndian.PutUint32(raw[offCtime:], now)

	block := make([]byte, layout.BlockSize)
	copy(block, raw)

	return v.WriteBlock(layout.InodeBlockOff, block)
}

// ReadBlock reads a single physical block from the volume.
func (v *Volume) ReadBlock(block blockio.PhysicalBlock) ([]byte, vvsfs.DriverError) {
	data, err := v.stream.ReadBlocks(block, 1)
	if err != nil {
		return nil, vvsfs.ErrIOFailed.Wrap(err)
	}
	return data, nil
}

// WriteBlock writes a single physical block to the volume.
func (v *Volume) WriteBlock(block blockio.PhysicalBlock, data []byte) vvsfs.DriverError {
	if err := v.stream.WriteBlocks(block, data); err != nil {
		return vvsfs.ErrIOFailed.Wrap(err)
	}
	return nil
}

// SyncFS persists both in-memory bitmaps to blocks 1-3.
func (v *Volume) SyncFS() vvsfs.DriverError {
	imapBlock := make([]byte, layout.BlockSize)
	copy(imapBlock, v.InodeBitmap.Bytes())
	if err := v.WriteBlock(layout.InodeBitmapBlock, imapBlock); err != nil {
		return err
	}

	dmapBlocks := make([]byte, layout.BlockSize*layout.DataBitmapBlocks)
	copy(dmapBlocks, v.DataBitmap.Bytes())
	if err := v.stream.WriteBlocks(layout.DataBitmapBlock, dmapBlocks); err != nil {
		return vvsfs.ErrIOFailed.Wrap(err)
	}
	return nil
}

// PutSuper releases in-memory bitmap state. VVSFS has no journal or
// cache to flush beyond SyncFS, so there is no further teardown work.
func (v *Volume) PutSuper() {
	v.InodeBitmap = nil
	v.DataBitmap = nil
}

// Statfs reports block and inode totals per spec.md §6.3.
func (v *Volume) Statfs() vvsfs.FSStat {
	totalInodes := uint64(layout.MaxInodes)
	freeInodes := totalInodes - uint64(v.InodeBitmap.PopCount())

	totalDataBlocks := uint64(layout.MaxDataBlocks)
	freeDataBlocks := totalDataBlocks - uint64(v.DataBitmap.PopCount())

	return vvsfs.FSStat{
		BlockSize:     layout.BlockSize,
		TotalBlocks:   uint64(layout.TotalBlocks),
		BlocksFree:    freeDataBlocks,
		Files:         totalInodes - freeInodes,
		FilesFree:     freeInodes,
		FileSystemID:  uint64(layout.Magic),
		MaxNameLength: layout.MaxName,
	}
}
