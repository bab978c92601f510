package inode

import (
	"os"
	"time"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/layout"
)

// Inode is the in-memory cache mirroring an on-disk record (spec.md
// §3.6): the block-index fields every blockmap/dirstore operation reads
// and mutates directly, plus the metadata needed to answer Stat().
//
// Ownership: a *Inode is created by Allocate or Load and is expected to
// be owned exclusively by whatever namespace.Driver open-file handle or
// directory operation is using it; this package does not itself provide
// any locking, matching spec.md §5's single-threaded-per-volume model.
type Inode struct {
	Ino uint32

	Mode    uint32
	Size    uint32
	NLinks  uint32
	Uid     uint32
	Gid     uint32
	Rdev    uint32
	Atime   uint32
	Mtime   uint32
	Ctime   uint32

	// IDBCount mirrors i_data_blocks_count: the number of logical data
	// blocks currently allocated to this inode.
	IDBCount uint32
	// IData mirrors i_block[15]: direct slots [0:14], indirect pointer
	// at [14].
	IData [layout.NInodeSlots]uint32

	dirty bool
}

// IsDir reports whether this inode is a directory.
func (i *Inode) IsDir() bool {
	return i.Mode&vvsfs.S_IFMT == vvsfs.S_IFDIR
}

// IsRegular reports whether this inode is a regular file.
func (i *Inode) IsRegular() bool {
	return i.Mode&vvsfs.S_IFMT == vvsfs.S_IFREG
}

// IsSymlink reports whether this inode is a symbolic link.
func (i *Inode) IsSymlink() bool {
	return i.Mode&vvsfs.S_IFMT == vvsfs.S_IFLNK
}

// MarkDirty flags the inode for write-back; WriteBack clears it.
func (i *Inode) MarkDirty() {
	i.dirty = true
}

// Dirty reports whether the inode has unsaved in-memory changes.
func (i *Inode) Dirty() bool {
	return i.dirty
}

// touch stamps all three of atime/mtime/ctime with now; there is no way to
// update only some of them. VVSFS's directory mutations update all three
// together (spec.md §4.3.3, the "Open Question" resolution for atime).
func (i *Inode) touch(now uint32) {
	i.Atime = now
	i.Mtime = now
	i.Ctime = now
	i.dirty = true
}

// Touch updates all three timestamps to the current wall-clock time.
func (i *Inode) Touch() {
	i.touch(uint32(time.Now().Unix()))
}

// ToFileStat converts the inode's raw on-disk fields into the host-facing
// vvsfs.FileStat shape. Block count is reported in SECTOR_SIZE units to
// match the i_blocks convention spec.md §3.1 calls out.
func (i *Inode) ToFileStat() vvsfs.FileStat {
	return vvsfs.FileStat{
		InodeNumber:  uint64(i.Ino),
		Nlinks:       uint64(i.NLinks),
		ModeFlags:    rawModeToFileMode(i.Mode),
		Uid:          i.Uid,
		Gid:          i.Gid,
		Rdev:         uint64(i.Rdev),
		Size:         int64(i.Size),
		BlockSize:    layout.BlockSize,
		NumBlocks:    int64(i.IDBCount) * (layout.BlockSize / layout.SectorSize),
		LastAccessed: time.Unix(int64(i.Atime), 0),
		LastModified: time.Unix(int64(i.Mtime), 0),
		LastChanged:  time.Unix(int64(i.Ctime), 0),
	}
}

// rawModeToFileMode maps VVSFS's on-disk S_IF*/S_IRWX* bits onto Go's
// os.FileMode bit layout, which is a different encoding.
func rawModeToFileMode(raw uint32) os.FileMode {
	mode := os.FileMode(raw & 0o7777)

	switch raw & vvsfs.S_IFMT {
	case vvsfs.S_IFDIR:
		mode |= os.ModeDir
	case vvsfs.S_IFLNK:
		mode |= os.ModeSymlink
	case vvsfs.S_IFBLK:
		mode |= os.ModeDevice
	case vvsfs.S_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	}
	return mode
}
