// Package inode implements the on-disk inode record (spec.md §3.2) and
// the in-memory inode cache and lifecycle built on top of it (spec.md
// §3.6, §4.5).
package inode

import (
	"encoding/binary"

	"github.com/vvsfs/vvsfs/layout"
)

// Raw is the on-disk, 256-byte inode record. Only the leading fields
// spec.md §3.2 defines are populated; the rest of the record is reserved
// and stays zero. All fields are host-order (native little-endian on the
// platforms this module targets), unlike the indirect block's pointers,
// which are explicitly big-endian (see blockmap).
type Raw struct {
	Mode            uint32
	Size            uint32
	NLinks          uint32
	DataBlocksCount uint32
	Block           [layout.NInodeSlots]uint32
	Uid             uint32
	Gid             uint32
	Atime           uint32
	Mtime           uint32
	Ctime           uint32
	Rdev            uint32
}

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
	offRdev    = offCtime + 4
)

// Marshal encodes r into a layout.InodeSize-byte buffer.
func (r *Raw) Marshal() []byte {
	buf := make([]byte, layout.InodeSize)
	binary.LittleEndian.PutUint32(buf[offMode:], r.Mode)
	binary.LittleEndian.PutUint32(buf[offSize:], r.Size)
	binary.LittleEndian.PutUint32(buf[offNlinks:], r.NLinks)
	binary.LittleEndian.PutUint32(buf[offDBCount:], r.DataBlocksCount)
	for i, v := range r.Block {
		binary.LittleEndian.PutUint32(buf[offBlocks+4*i:], v)
	}
	binary.LittleEndian.PutUint32(buf[offUid:], r.Uid)
	binary.LittleEndian.PutUint32(buf[offGid:], r.Gid)
	binary.LittleEndian.PutUint32(buf[offAtime:], r.Atime)
	binary.LittleEndian.PutUint32(buf[offMtime:], r.Mtime)
	binary.LittleEndian.PutUint32(buf[offCtime:], r.Ctime)
	binary.LittleEndian.PutUint32(buf[offRdev:], r.Rdev)
	return buf
}

// Unmarshal decodes a Raw from a buffer of at least layout.InodeSize
// bytes.
func Unmarshal(buf []byte) Raw {
	var r Raw
	r.Mode = binary.LittleEndian.Uint32(buf[offMode:])
	r.Size = binary.LittleEndian.Uint32(buf[offSize:])
	r.NLinks = binary.LittleEndian.Uint32(buf[offNlinks:])
	r.DataBlocksCount = binary.LittleEndian.Uint32(buf[offDBCount:])
	for i := range r.Block {
		r.Block[i] = binary.LittleEndian.Uint32(buf[offBlocks+4*i:])
	}
	r.Uid = binary.LittleEndian.Uint32(buf[offUid:])
	r.Gid = binary.LittleEndian.Uint32(buf[offGid:])
	r.Atime = binary.LittleEndian.Uint32(buf[offAtime:])
	r.Mtime = binary.LittleEndian.Uint32(buf[offMtime:])
	r.Ctime = binary.LittleEndian.Uint32(buf[offCtime:])
	r.Rdev = binary.LittleEndian.Uint32(buf[offRdev:])
	return r
}
