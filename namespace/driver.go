package namespace

import (
	"golang.org/x/exp/slices"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/blockmap"
	"github.com/vvsfs/vvsfs/dirstore"
	"github.com/vvsfs/vvsfs/inode"
	"github.com/vvsfs/vvsfs/layout"
	"github.com/vvsfs/vvsfs/volume"
)

// reservedNames are never stored as dentries (spec.md §3.5):
// checkNameLength rejects them as names for new entries.
var reservedNames = []string{".", ".."}

// RootIno is the inode number mkfs always assigns the root directory
// (spec.md §3.3).
const RootIno = 1

// Driver implements the ten (parent, name)-shaped namespace operations
// of spec.md §4.4 on top of dirstore, inode, and blockmap. Unlike the
// teacher's CommonDriver, these operations are not path-walking: every
// call takes an already-resolved parent inode, matching spec.md's own
// (parent, name) operation shapes rather than whole-path ones. A
// path-walking layer, if one is ever wanted, is expected to sit above
// this package the way CommonDriver sits above DriverImplementation.
type Driver struct {
	Volume *volume.Volume
}

// NewDriver wraps an already-open or freshly formatted volume.
func NewDriver(v *volume.Volume) *Driver {
	return &Driver{Volume: v}
}

// Root loads the root directory inode (always inode 1).
func (d *Driver) Root() (*inode.Inode, vvsfs.DriverError) {
	return inode.Load(d.Volume, RootIno)
}

func checkNameLength(name string) vvsfs.DriverError {
	if len(name) > layout.MaxName {
		return vvsfs.ErrNameTooLong
	}
	if slices.Contains(reservedNames, name) {
		return vvsfs.ErrInvalidArgument
	}
	return nil
}

// Create allocates a new regular (or, via mode, special) inode and adds
// it to parent under name (spec.md §4.4 create). On failure to add the
// dentry, the new inode's link is rolled back.
func (d *Driver) Create(parent *inode.Inode, name string, mode uint32, rdev uint32) (*inode.Inode, vvsfs.DriverError) {
	if err := checkNameLength(name); err != nil {
		return nil, err
	}

	child, err := inode.Allocate(d.Volume, parent, mode, rdev)
	if err != nil {
		return nil, err
	}
	if err := inode.WriteBack(d.Volume, child); err != nil {
		return nil, err
	}

	if err := dirstore.Add(d.Volume, parent, name, child.Ino); err != nil {
		_ = inode.DropLink(d.Volume, child)
		return nil, err
	}
	if err := inode.WriteBack(d.Volume, parent); err != nil {
		return nil, err
	}
	return child, nil
}

// Mkdir creates a directory inode under parent. No on-disk '.'/'..'
// entries are written (spec.md §4.4 mkdir, §3.5).
func (d *Driver) Mkdir(parent *inode.Inode, name string, mode uint32) (*inode.Inode, vvsfs.DriverError) {
	return d.Create(parent, name, (mode&^uint32(vvsfs.S_IFMT))|vvsfs.S_IFDIR, 0)
}

// devMinorBits and devMinorMask split an encoded rdev into major/minor
// the way Linux's MAJOR()/MINOR() macros do (include/linux/kdev_t.h).
const (
	devMinorBits = 20
	devMinorMask = (1 << devMinorBits) - 1
)

func devMajor(rdev uint32) uint32 { return rdev >> devMinorBits }
func devMinor(rdev uint32) uint32 { return rdev & devMinorMask }

// oldValidDev mirrors Linux's old_valid_dev: rdev fits the legacy 8-bit
// major / 8-bit minor encoding only if both halves stay under 256.
func oldValidDev(rdev uint32) bool {
	return devMajor(rdev) < 256 && devMinor(rdev) < 256
}

// Mknod creates a special file (device, FIFO, or socket) under parent.
// rdev must fit the legacy 8-bit/8-bit device number encoding, checked
// unconditionally for every node type (spec.md §4.4 mknod; original
// source's vvsfs_mknod calls old_valid_dev(rdev) before even looking at
// the mode).
func (d *Driver) Mknod(parent *inode.Inode, name string, mode uint32, rdev uint32) (*inode.Inode, vvsfs.DriverError) {
	if !oldValidDev(rdev) {
		return nil, vvsfs.ErrInvalidArgument
	}
	return d.Create(parent, name, mode, rdev)
}

// Symlink creates a symlink inode under parent whose content is target,
// written into its (page-backed, in this implementation block-backed)
// data area (spec.md §4.4 symlink).
func (d *Driver) Symlink(parent *inode.Inode, name string, target string) (*inode.Inode, vvsfs.DriverError) {
	if err := checkNameLength(name); err != nil {
		return nil, err
	}

	payload := append([]byte(target), 0)
	if len(payload) > layout.BlockSize {
		return nil, vvsfs.ErrNameTooLong
	}

	child, err := inode.Allocate(d.Volume, parent, vvsfs.S_IFLNK|0o777, 0)
	if err != nil {
		return nil, err
	}

	handle := NewHandle(d.Volume, child, name)
	if err := handle.Resize(uint64(len(payload))); err != nil {
		_ = inode.DropLink(d.Volume, child)
		return nil, err
	}
	block := make([]byte, layout.BlockSize)
	copy(block, payload)
	if err := handle.WriteBlocks(0, block); err != nil {
		_ = inode.DropLink(d.Volume, child)
		return nil, err
	}

	if err := dirstore.Add(d.Volume, parent, name, child.Ino); err != nil {
		_ = inode.DropLink(d.Volume, child)
		return nil, err
	}
	if err := inode.WriteBack(d.Volume, parent); err != nil {
		return nil, err
	}
	return child, nil
}

// Link adds a new dentry in parent pointing at old's existing inode,
// incrementing its link count (spec.md §4.4 link).
func (d *Driver) Link(old *inode.Inode, parent *inode.Inode, name string) vvsfs.DriverError {
	if err := checkNameLength(name); err != nil {
		return err
	}

	old.NLinks++
	old.MarkDirty()
	if err := inode.WriteBack(d.Volume, old); err != nil {
		return err
	}

	if err := dirstore.Add(d.Volume, parent, name, old.Ino); err != nil {
		old.NLinks--
		_ = inode.WriteBack(d.Volume, old)
		return err
	}
	return inode.WriteBack(d.Volume, parent)
}

// Lookup resolves name within parent to its inode (spec.md §4.4
// lookup).
func (d *Driver) Lookup(parent *inode.Inode, name string) (*inode.Inode, vvsfs.DriverError) {
	loc, found, err := dirstore.Find(d.Volume, parent, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, vvsfs.ErrNotFound
	}
	return inode.Load(d.Volume, loc.Entry.InodeNumber)
}

// Unlink removes name from parent and drops the victim inode's link
// count, freeing its data blocks and inode-bitmap bit once the count
// reaches zero (spec.md §4.4 unlink). It refuses to remove directories;
// callers want Rmdir for those.
func (d *Driver) Unlink(parent *inode.Inode, name string) vvsfs.DriverError {
	loc, found, err := dirstore.Find(d.Volume, parent, name)
	if err != nil {
		return err
	}
	if !found {
		return vvsfs.ErrNotFound
	}

	victim, err := inode.Load(d.Volume, loc.Entry.InodeNumber)
	if err != nil {
		return err
	}
	if victim.IsDir() {
		return vvsfs.ErrIsADirectory
	}

	if err := dirstore.Remove(d.Volume, parent, loc); err != nil {
		return err
	}
	if err := inode.WriteBack(d.Volume, parent); err != nil {
		return err
	}

	if err := inode.DropLink(d.Volume, victim); err != nil {
		return err
	}
	return inode.WriteBack(d.Volume, victim)
}

// Rmdir removes an empty directory dentry from parent (spec.md §4.4
// rmdir).
func (d *Driver) Rmdir(parent *inode.Inode, name string) vvsfs.DriverError {
	loc, found, err := dirstore.Find(d.Volume, parent, name)
	if err != nil {
		return err
	}
	if !found {
		return vvsfs.ErrNotFound
	}

	victim, err := inode.Load(d.Volume, loc.Entry.InodeNumber)
	if err != nil {
		return err
	}
	if !victim.IsDir() {
		return vvsfs.ErrNotADirectory
	}

	empty, err := dirstore.IsEmpty(d.Volume, victim)
	if err != nil {
		return err
	}
	if !empty {
		return vvsfs.ErrDirectoryNotEmpty
	}

	if err := dirstore.Remove(d.Volume, parent, loc); err != nil {
		return err
	}
	if err := inode.WriteBack(d.Volume, parent); err != nil {
		return err
	}

	if err := inode.DropLink(d.Volume, victim); err != nil {
		return err
	}
	if victim.NLinks > 0 {
		return inode.WriteBack(d.Volume, victim)
	}
	return nil
}

// Readdir emits every real dentry in dir starting at byte offset
// cursor, returning the entries found and the cursor to resume from
// (spec.md §4.4 readdir). '.' and '..' are not stored and are not
// emitted here; synthesizing them is the host readdir boundary's job.
func (d *Driver) Readdir(dir *inode.Inode, cursor uint32) ([]dirstore.Dentry, uint32, vvsfs.DriverError) {
	buf, err := dirstore.ReadAll(d.Volume, dir)
	if err != nil {
		return nil, cursor, err
	}

	var entries []dirstore.Dentry
	off := cursor
	for off+layout.DentrySize <= uint32(len(buf)) {
		entry := dirstore.UnmarshalDentry(buf[off:])
		off += layout.DentrySize
		if entry.Empty() {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, off, nil
}

// Rename moves (or renames) the dentry oldName in oldParent to newName
// in newParent, implementing every case of spec.md §4.4 rename.
func (d *Driver) Rename(
	oldParent *inode.Inode,
	oldName string,
	newParent *inode.Inode,
	newName string,
	flags vvsfs.RenameFlags,
) vvsfs.DriverError {
	if flags&(vvsfs.RenameExchange|vvsfs.RenameWhiteout) != 0 {
		return vvsfs.ErrInvalidArgument
	}
	if err := checkNameLength(newName); err != nil {
		return err
	}

	srcLoc, found, err := dirstore.Find(d.Volume, oldParent, oldName)
	if err != nil {
		return err
	}
	if !found {
		return vvsfs.ErrNotFound
	}

	dstLoc, dstFound, err := dirstore.Find(d.Volume, newParent, newName)
	if err != nil {
		return err
	}
	if dstFound && flags&vvsfs.RenameNoReplace != 0 {
		return vvsfs.ErrExists
	}
	if dstFound && dstLoc.Entry.InodeNumber == srcLoc.Entry.InodeNumber {
		return nil
	}

	srcInode, err := inode.Load(d.Volume, srcLoc.Entry.InodeNumber)
	if err != nil {
		return err
	}

	var target *inode.Inode
	if dstFound {
		target, err = inode.Load(d.Volume, dstLoc.Entry.InodeNumber)
		if err != nil {
			return err
		}
	}

	if srcInode.IsDir() {
		if dstFound {
			if !target.IsDir() {
				return vvsfs.ErrNotADirectory
			}
			empty, err := dirstore.IsEmpty(d.Volume, target)
			if err != nil {
				return err
			}
			if !empty {
				return vvsfs.ErrDirectoryNotEmpty
			}
		}
	} else if dstFound && target.IsDir() {
		return vvsfs.ErrIsADirectory
	}

	if dstFound {
		if err := dirstore.DentryExchange(d.Volume, newParent, dstLoc, target, srcLoc.Entry.InodeNumber); err != nil {
			return err
		}
		if err := inode.WriteBack(d.Volume, newParent); err != nil {
			return err
		}
		if target.NLinks == 0 {
			if err := blockmap.FreeAll(d.Volume, target.IDBCount, target.IData); err != nil {
				return err
			}
			d.Volume.InodeBitmap.FreeInode(target.Ino)
		} else if err := inode.WriteBack(d.Volume, target); err != nil {
			return err
		}
	} else {
		if err := dirstore.Add(d.Volume, newParent, newName, srcLoc.Entry.InodeNumber); err != nil {
			return err
		}
		if err := inode.WriteBack(d.Volume, newParent); err != nil {
			return err
		}
	}

	if err := dirstore.Remove(d.Volume, oldParent, srcLoc); err != nil {
		return err
	}
	if err := inode.WriteBack(d.Volume, oldParent); err != nil {
		return err
	}

	srcInode.MarkDirty()
	return inode.WriteBack(d.Volume, srcInode)
}
