// Package namespace implements the namespace operations of spec.md §4.4
// (create, mkdir, mknod, symlink, link, lookup, unlink, rmdir, readdir,
// rename) on top of inode, blockmap, and dirstore, plus a vvsfs.
// ObjectHandle adapter (Handle) so a resolved inode can be plugged into
// the generic file-handle machinery in blockcache/basicstream.
package namespace

import (
	"os"
	"time"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/blockio"
	"github.com/vvsfs/vvsfs/blockmap"
	"github.com/vvsfs/vvsfs/dirstore"
	"github.com/vvsfs/vvsfs/inode"
	"github.com/vvsfs/vvsfs/layout"
	"github.com/vvsfs/vvsfs/volume"
)

// Handle adapts a resolved *inode.Inode into vvsfs.ObjectHandle, the
// interface the host-facing file/directory read-write path is built on.
type Handle struct {
	v    *volume.Volume
	node *inode.Inode
	name string
}

// NewHandle wraps node as an ObjectHandle known to the host by name
// (the leaf component of its path, or "/" for the root).
func NewHandle(v *volume.Volume, node *inode.Inode, name string) *Handle {
	return &Handle{v: v, node: node, name: name}
}

// Inode exposes the underlying in-memory inode for namespace operations
// that need to mutate it directly (dirstore/blockmap calls, link-count
// changes) without going through the ObjectHandle interface.
func (h *Handle) Inode() *inode.Inode {
	return h.node
}

func (h *Handle) Stat() vvsfs.FileStat {
	return h.node.ToFileStat()
}

// Resize grows or shrinks the object to newSize bytes. Only sequential
// growth/shrink from the current end is defined (spec.md §4.2); blocks
// are allocated or freed one at a time via blockmap.
func (h *Handle) Resize(newSize uint64) vvsfs.DriverError {
	n := h.node
	for uint64(n.IDBCount)*layout.BlockSize < newSize {
		if _, err := blockmap.GetOrCreate(h.v, &n.IDBCount, &n.IData, n.IDBCount, true); err != nil {
			return err
		}
	}
	for n.IDBCount > 0 && uint64(n.IDBCount-1)*layout.BlockSize >= newSize {
		last := n.IDBCount - 1
		pos, err := blockmap.Index(h.v, n.IDBCount, n.IData, last)
		if err != nil {
			return err
		}
		h.v.DataBitmap.FreeBlock(pos)
		if err := blockmap.ShiftBack(h.v, &n.IDBCount, &n.IData, last); err != nil {
			return err
		}
	}

	n.Size = uint32(newSize)
	n.Touch()
	n.MarkDirty()
	return inode.WriteBack(h.v, n)
}

// ReadBlocks fills buffer from the object's logical blocks starting at
// index. A sparse (never-written) block reads back as zero, matching
// get_or_create's sparse-read rule (spec.md §4.2).
func (h *Handle) ReadBlocks(index blockio.LogicalBlock, buffer []byte) vvsfs.DriverError {
	numBlocks := len(buffer) / layout.BlockSize
	for i := 0; i < numBlocks; i++ {
		dst := buffer[i*layout.BlockSize : (i+1)*layout.BlockSize]
		pos, err := blockmap.Index(h.v, h.node.IDBCount, h.node.IData, uint32(index)+uint32(i))
		if err != nil {
			return err
		}
		if pos == 0 {
			for j := range dst {
				dst[j] = 0
			}
			continue
		}
		data, err := h.v.ReadBlock(h.v.DataBitmap.ToPhysicalBlock(pos))
		if err != nil {
			return err
		}
		copy(dst, data)
	}
	return nil
}

// WriteBlocks writes buffer to the object's logical blocks starting at
// index, allocating any block that is exactly at the current end of the
// object (spec.md §4.2's get_or_create allocation path).
func (h *Handle) WriteBlocks(index blockio.LogicalBlock, data []byte) vvsfs.DriverError {
	numBlocks := len(data) / layout.BlockSize
	for i := 0; i < numBlocks; i++ {
		src := data[i*layout.BlockSize : (i+1)*layout.BlockSize]
		pos, err := blockmap.GetOrCreate(h.v, &h.node.IDBCount, &h.node.IData, uint32(index)+uint32(i), true)
		if err != nil {
			return err
		}
		if err := h.v.WriteBlock(h.v.DataBitmap.ToPhysicalBlock(pos), src); err != nil {
			return err
		}
	}
	h.node.MarkDirty()
	return nil
}

// Unlink drops the object's link count and frees its blocks once it
// reaches zero. Removing the owning dentry is the caller's (namespace
// operation's) responsibility — spec.md §4.4's unlink/rmdir call
// dirstore.Remove before this.
func (h *Handle) Unlink() vvsfs.DriverError {
	if err := inode.DropLink(h.v, h.node); err != nil {
		return err
	}
	if h.node.NLinks == 0 {
		return nil
	}
	return inode.WriteBack(h.v, h.node)
}

func (h *Handle) Chmod(mode os.FileMode) vvsfs.DriverError {
	h.node.Mode = (h.node.Mode &^ 0o7777) | uint32(mode.Perm())
	h.node.Touch()
	return inode.WriteBack(h.v, h.node)
}

func (h *Handle) Chown(uid, gid int) vvsfs.DriverError {
	h.node.Uid = uint32(uid)
	h.node.Gid = uint32(gid)
	h.node.Touch()
	return inode.WriteBack(h.v, h.node)
}

func (h *Handle) Chtimes(createdAt, lastAccessed, lastModified, lastChanged time.Time) error {
	h.node.Atime = uint32(lastAccessed.Unix())
	h.node.Mtime = uint32(lastModified.Unix())
	h.node.Ctime = uint32(lastChanged.Unix())
	h.node.MarkDirty()
	return inode.WriteBack(h.v, h.node)
}

// ListDir returns every dentry name in this directory. "." and ".." are
// never included: they are never stored on disk (spec.md §3.5) and are
// synthesized, if at all, by the host readdir boundary.
func (h *Handle) ListDir() ([]string, vvsfs.DriverError) {
	buf, err := dirstore.ReadAll(h.v, h.node)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(buf)/layout.DentrySize)
	for off := 0; off+layout.DentrySize <= len(buf); off += layout.DentrySize {
		entry := dirstore.UnmarshalDentry(buf[off:])
		if entry.Empty() {
			continue
		}
		names = append(names, entry.Name)
	}
	return names, nil
}

func (h *Handle) Name() string {
	return h.name
}
