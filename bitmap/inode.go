package bitmap

// InodeBitmap wraps a Bitmap with the +1 bias spec.md §4.1 requires:
// inode numbers are 1-based, so a reservation at bitmap position p is
// inode number p+1, and inode 0 stays permanently invalid.
type InodeBitmap struct {
	*Bitmap
}

// NewInodeBitmap wraps data as an InodeBitmap.
func NewInodeBitmap(data []byte) *InodeBitmap {
	return &InodeBitmap{Bitmap: New(data)}
}

// ReserveInode reserves a free inode number and returns it, or 0 if the
// bitmap is full.
func (b *InodeBitmap) ReserveInode() uint32 {
	position := b.Reserve()
	if position == 0 {
		return 0
	}
	return uint32(position) + 1
}

// FreeInode releases an inode number previously returned by ReserveInode.
func (b *InodeBitmap) FreeInode(ino uint32) {
	if ino == 0 {
		return
	}
	b.Free(int(ino) - 1)
}

// IsInodeSet reports whether ino is currently allocated.
func (b *InodeBitmap) IsInodeSet(ino uint32) bool {
	if ino == 0 {
		return false
	}
	return b.IsSet(int(ino) - 1)
}
