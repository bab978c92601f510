package dirstore

import (
	"bytes"
	"encoding/binary"

	"github.com/vvsfs/vvsfs/layout"
)

// Dentry is one 128-byte directory entry (spec.md §3.4): a
// NUL-terminated name of up to layout.MaxName bytes, followed by a
// 4-byte inode number. InodeNumber == 0 marks an unused/tombstone slot.
// '.' and '..' are never represented as a Dentry; namespace.Driver's
// Readdir does not emit them either (spec.md §3.5).
type Dentry struct {
	Name        string
	InodeNumber uint32
}

// Empty reports whether this slot is a tombstone.
func (d Dentry) Empty() bool {
	return d.InodeNumber == 0
}

// Marshal encodes d into a layout.DentrySize-byte buffer.
func (d Dentry) Marshal() []byte {
	buf := make([]byte, layout.DentrySize)
	copy(buf[:layout.NameFieldSize], d.Name)
	binary.LittleEndian.PutUint32(buf[layout.NameFieldSize:], d.InodeNumber)
	return buf
}

// UnmarshalDentry decodes a Dentry from a buffer of at least
// layout.DentrySize bytes.
func UnmarshalDentry(buf []byte) Dentry {
	nameField := buf[:layout.NameFieldSize]
	end := bytes.IndexByte(nameField, 0)
	if end < 0 {
		end = len(nameField)
	}
	return Dentry{
		Name:        string(nameField[:end]),
		InodeNumber: binary.LittleEndian.Uint32(buf[layout.NameFieldSize:]),
	}
}
