package inode

import (
	"time"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/blockmap"
	"github.com/vvsfs/vvsfs/volume"
)

// Allocate reserves a new inode number and its first data block, and
// builds the in-memory inode that owns them (spec.md §4.5 allocate).
// parent supplies the owning uid/gid; mode is the full mode word (type
// bits plus permissions); rdev is stored for device special files.
func Allocate(v *volume.Volume, parent *Inode, mode uint32, rdev uint32) (*Inode, vvsfs.DriverError) {
	ino := v.InodeBitmap.ReserveInode()
	if ino == 0 {
		return nil, vvsfs.ErrNoSpace
	}

	dno := v.DataBitmap.ReserveBlock()
	if dno == 0 {
		v.InodeBitmap.FreeInode(ino)
		return nil, vvsfs.ErrNoSpace
	}

	now := uint32(time.Now().Unix())
	created := &Inode{
		Ino:      ino,
		Mode:     mode,
		NLinks:   1,
		Uid:      parent.Uid,
		Gid:      parent.Gid,
		Rdev:     rdev,
		Atime:    now,
		Mtime:    now,
		Ctime:    now,
		IDBCount: 1,
		dirty:    true,
	}
	created.IData[0] = dno
	return created, nil
}

// Load reads ino's on-disk record into a new in-memory Inode (spec.md
// §4.5 load).
func Load(v *volume.Volume, ino uint32) (*Inode, vvsfs.DriverError) {
	raw, err := ReadRaw(v, ino)
	if err != nil {
		return nil, err
	}
	return &Inode{
		Ino:      ino,
		Mode:     raw.Mode,
		Size:     raw.Size,
		NLinks:   raw.NLinks,
		Uid:      raw.Uid,
		Gid:      raw.Gid,
		Rdev:     raw.Rdev,
		Atime:    raw.Atime,
		Mtime:    raw.Mtime,
		Ctime:    raw.Ctime,
		IDBCount: raw.DataBlocksCount,
		IData:    raw.Block,
	}, nil
}

// WriteBack persists i's in-memory fields to its inode-table slot and
// clears the dirty flag (spec.md §4.5 write_back). Per spec.md §5 this
// syncs immediately; there is no deferred write-back queue.
func WriteBack(v *volume.Volume, i *Inode) vvsfs.DriverError {
	raw := Raw{
		Mode:            i.Mode,
		Size:            i.Size,
		NLinks:          i.NLinks,
		DataBlocksCount: i.IDBCount,
		Block:           i.IData,
		Uid:             i.Uid,
		Gid:             i.Gid,
		Atime:           i.Atime,
		Mtime:           i.Mtime,
		Ctime:           i.Ctime,
		Rdev:            i.Rdev,
	}
	if err := WriteRaw(v, i.Ino, raw); err != nil {
		return err
	}
	i.dirty = false
	return nil
}

// Destroy releases the in-memory cache entry (spec.md §4.5 destroy).
// Go's garbage collector reclaims the memory itself; this exists as the
// call site a caller is expected to use once an inode's last reference
// is dropped. It clears the dirty flag, so Dirty reports false
// afterwards; unsaved changes are discarded, not written back.
func Destroy(i *Inode) {
	i.dirty = false
}

// DropLink decrements i's link count and, once it reaches zero, frees
// every data block the inode owns and releases its inode-bitmap bit
// (spec.md §4.5 drop_link, free_all_data_blocks).
func DropLink(v *volume.Volume, i *Inode) vvsfs.DriverError {
	if i.NLinks > 0 {
		i.NLinks--
	}
	i.dirty = true

	if i.NLinks > 0 {
		return nil
	}

	if err := blockmap.FreeAll(v, i.IDBCount, i.IData); err != nil {
		return err
	}
	v.InodeBitmap.FreeInode(i.Ino)
	return nil
}
