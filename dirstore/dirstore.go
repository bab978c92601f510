// Package dirstore implements the directory entry store (spec.md §4.3):
// reading, finding, inserting, and removing dentries from a directory
// inode's data blocks, including the compaction protocol that keeps a
// directory's dentry slots dense after a removal.
package dirstore

import (
	"encoding/binary"
	"time"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/blockmap"
	"github.com/vvsfs/vvsfs/inode"
	"github.com/vvsfs/vvsfs/layout"
	"github.com/vvsfs/vvsfs/volume"
)

// Loc identifies a dentry slot within a directory's data blocks, as
// returned by Find. It is the Go re-expression of the original driver's
// "bufloc" concept (a found-dentry location, optionally retaining a
// buffer/entry handle for in-place mutation) — here the "mutate in
// place" step is just calling Remove or DentryExchange with the Loc,
// since this implementation has no separate buffer-head cache to hand
// off ownership of.
type Loc struct {
	BlockIndex uint32
	SlotIndex  uint32
	Entry      Dentry
}

func readLogicalBlock(v *volume.Volume, dir *inode.Inode, logical uint32) ([]byte, vvsfs.DriverError) {
	pos, err := blockmap.Index(v, dir.IDBCount, dir.IData, logical)
	if err != nil {
		return nil, err
	}
	return v.ReadBlock(v.DataBitmap.ToPhysicalBlock(pos))
}

func writeLogicalBlock(v *volume.Volume, dir *inode.Inode, logical uint32, data []byte) vvsfs.DriverError {
	pos, err := blockmap.Index(v, dir.IDBCount, dir.IData, logical)
	if err != nil {
		return err
	}
	return v.WriteBlock(v.DataBitmap.ToPhysicalBlock(pos), data)
}

// lastBlockCount returns the number of valid slots in the directory's
// final logical block: ((i_size/128) mod 8), or 8 when that is 0
// (spec.md §4.3.2's "Glossary: Last-block count"). Only meaningful when
// the directory owns at least one block.
func lastBlockCount(dir *inode.Inode) uint32 {
	num := dir.Size / layout.DentrySize
	lc := num % layout.DentriesPerBlock
	if lc == 0 {
		lc = layout.DentriesPerBlock
	}
	return lc
}

// slotCount returns how many of block b's DentriesPerBlock slots are
// valid: all non-last blocks are full; the last block uses
// lastBlockCount.
func slotCount(dir *inode.Inode, b uint32) uint32 {
	if b+1 < dir.IDBCount {
		return layout.DentriesPerBlock
	}
	return lastBlockCount(dir)
}

func zeroSlot(data []byte, slot uint32) {
	start := slot * layout.DentrySize
	for i := start; i < start+layout.DentrySize; i++ {
		data[i] = 0
	}
}

// ReadAll concatenates every data block owned by dir, in logical order
// (spec.md §4.3.1).
func ReadAll(v *volume.Volume, dir *inode.Inode) ([]byte, vvsfs.DriverError) {
	buf := make([]byte, 0, int(dir.IDBCount)*layout.BlockSize)
	for b := uint32(0); b < dir.IDBCount; b++ {
		data, err := readLogicalBlock(v, dir, b)
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
	}
	return buf, nil
}

// Find walks dir's dentries looking for name, first match wins
// (spec.md §4.3.2). A slot is skipped when its inode number is 0 OR its
// name doesn't match — the corrected, not-ambiguous, reading of the
// source's skip predicate.
func Find(v *volume.Volume, dir *inode.Inode, name string) (Loc, bool, vvsfs.DriverError) {
	for b := uint32(0); b < dir.IDBCount; b++ {
		data, err := readLogicalBlock(v, dir, b)
		if err != nil {
			return Loc{}, false, err
		}
		slots := slotCount(dir, b)
		for s := uint32(0); s < slots; s++ {
			entry := UnmarshalDentry(data[s*layout.DentrySize:])
			if entry.InodeNumber == 0 || entry.Name != name {
				continue
			}
			return Loc{BlockIndex: b, SlotIndex: s, Entry: entry}, true, nil
		}
	}
	return Loc{}, false, nil
}

// Add appends a new dentry at the end of dir's entries, allocating a new
// data block first if necessary (spec.md §4.3.3). Callers must Find
// first to enforce name uniqueness; Add does not check it.
func Add(v *volume.Volume, dir *inode.Inode, name string, ino uint32) vvsfs.DriverError {
	if len(name) > layout.MaxName {
		return vvsfs.ErrNameTooLong
	}

	num := dir.Size / layout.DentrySize
	if num >= layout.MaxInodeBlocks*layout.DentriesPerBlock {
		return vvsfs.ErrNoSpace
	}

	blockPos := num / layout.DentriesPerBlock
	slot := num % layout.DentriesPerBlock

	var data []byte
	if blockPos >= dir.IDBCount {
		if _, err := blockmap.GetOrCreate(v, &dir.IDBCount, &dir.IData, blockPos, true); err != nil {
			return err
		}
		data = make([]byte, layout.BlockSize)
	} else {
		var err vvsfs.DriverError
		data, err = readLogicalBlock(v, dir, blockPos)
		if err != nil {
			return err
		}
	}

	entry := Dentry{Name: name, InodeNumber: ino}
	copy(data[slot*layout.DentrySize:], entry.Marshal())
	if err := writeLogicalBlock(v, dir, blockPos, data); err != nil {
		return err
	}

	dir.Size += layout.DentrySize
	dir.Touch()
	dir.MarkDirty()
	return nil
}

// Remove deletes the dentry at loc, applying the hole-filling compaction
// protocol of spec.md §4.3.4: the last entry in the directory's last
// block is swapped into the hole (unless the hole already is that
// entry), and if the last block is thereby emptied it is freed and the
// block-address map shifted back (blockmap.ShiftBack).
func Remove(v *volume.Volume, dir *inode.Inode, loc Loc) vvsfs.DriverError {
	L := lastBlockCount(dir)
	lastBlock := dir.IDBCount - 1

	freeLastBlockIfEmpty := func(blockIndex uint32) vvsfs.DriverError {
		pos, err := blockmap.Index(v, dir.IDBCount, dir.IData, blockIndex)
		if err != nil {
			return err
		}
		v.DataBitmap.FreeBlock(pos)
		return blockmap.ShiftBack(v, &dir.IDBCount, &dir.IData, blockIndex)
	}

	if loc.BlockIndex == lastBlock {
		data, err := readLogicalBlock(v, dir, loc.BlockIndex)
		if err != nil {
			return err
		}
		if loc.SlotIndex == L-1 {
			zeroSlot(data, loc.SlotIndex)
			if L == 1 {
				if err := freeLastBlockIfEmpty(loc.BlockIndex); err != nil {
					return err
				}
			} else if err := writeLogicalBlock(v, dir, loc.BlockIndex, data); err != nil {
				return err
			}
		} else {
			copy(data[loc.SlotIndex*layout.DentrySize:], data[(L-1)*layout.DentrySize:L*layout.DentrySize])
			zeroSlot(data, L-1)
			if err := writeLogicalBlock(v, dir, loc.BlockIndex, data); err != nil {
				return err
			}
		}
	} else {
		lastData, err := readLogicalBlock(v, dir, lastBlock)
		if err != nil {
			return err
		}
		victimData, err := readLogicalBlock(v, dir, loc.BlockIndex)
		if err != nil {
			return err
		}
		copy(victimData[loc.SlotIndex*layout.DentrySize:], lastData[(L-1)*layout.DentrySize:L*layout.DentrySize])
		zeroSlot(lastData, L-1)
		if err := writeLogicalBlock(v, dir, loc.BlockIndex, victimData); err != nil {
			return err
		}
		if L == 1 {
			if err := freeLastBlockIfEmpty(lastBlock); err != nil {
				return err
			}
		} else if err := writeLogicalBlock(v, dir, lastBlock, lastData); err != nil {
			return err
		}
	}

	dir.Size -= layout.DentrySize
	dir.Touch()
	dir.MarkDirty()
	return nil
}

// IsEmpty reports whether dir has no real entries (spec.md §4.3.6). A
// slot is "reserved" (not counted against emptiness) when it is a
// tombstone, or its name is "." with a matching inode number, or its
// name is "..". Since this driver never stores '.'/'..' on disk, this
// reduces in practice to "no non-zero inode entries exist"; the
// '.'/'..' handling is kept for robustness.
func IsEmpty(v *volume.Volume, dir *inode.Inode) (bool, vvsfs.DriverError) {
	for b := uint32(0); b < dir.IDBCount; b++ {
		data, err := readLogicalBlock(v, dir, b)
		if err != nil {
			return false, err
		}
		slots := slotCount(dir, b)
		for s := uint32(0); s < slots; s++ {
			entry := UnmarshalDentry(data[s*layout.DentrySize:])
			if entry.InodeNumber == 0 {
				continue
			}
			if entry.Name == "." && entry.InodeNumber == dir.Ino {
				continue
			}
			if entry.Name == ".." {
				continue
			}
			return false, nil
		}
	}
	return true, nil
}

// DentryExchange rewrites the inode number of the dentry at loc within
// parent to newIno, for rename-over-an-existing-target (spec.md §4.3.7).
// The dentry update is persisted before the caller is expected to flush
// the replaced target's link-count change, so a crash never leaves a
// dentry pointing at nothing.
func DentryExchange(v *volume.Volume, parent *inode.Inode, loc Loc, target *inode.Inode, newIno uint32) vvsfs.DriverError {
	data, err := readLogicalBlock(v, parent, loc.BlockIndex)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(data[loc.SlotIndex*layout.DentrySize+layout.NameFieldSize:], newIno)
	if err := writeLogicalBlock(v, parent, loc.BlockIndex, data); err != nil {
		return err
	}
	parent.Touch()
	parent.MarkDirty()

	target.Ctime = uint32(time.Now().Unix())
	if target.NLinks > 0 {
		target.NLinks--
	}
	target.MarkDirty()
	return nil
}
