// Package layout holds the fixed on-disk geometry of a VVSFS image: block
// and region sizes, offsets, and derived limits. Every package that
// addresses a raw block number or inode/dentry field — volume, inode,
// blockmap, dirstore, namespace — imports this package rather than
// hardcoding or re-deriving these numbers.
package layout

// Fixed geometry constants (spec.md §6.1). VVSFS has exactly one layout;
// there is no variable-geometry table to consult (see DESIGN.md for why
// the teacher's disk-geometry catalog has no home here).
const (
	BlockSize  = 1024
	SectorSize = 512
	InodeSize  = 256

	InodesPerBlock = BlockSize / InodeSize // 4
	NDirectSlots   = 14
	NInodeSlots    = 15

	ImapSize = 512  // bytes of block 1 actually used
	DmapSize = 2048 // bytes across blocks 2-3

	SuperblockBlock  = 0
	InodeBitmapBlock = 1
	DataBitmapBlock  = 2
	DataBitmapBlocks = 2 // blocks 2-3

	InodeBlockOff = 4
	InodeBlocks   = 4096
	DataBlockOff  = InodeBlockOff + InodeBlocks // 4100

	TotalBlocks   = 20484
	MaxDataBlocks = TotalBlocks - DataBlockOff // 16384

	Magic uint32 = 0xCAFEB0BA

	MaxName          = 123
	NameFieldSize    = MaxName + 1 // NUL-terminated name field
	DentrySize       = 128         // NameFieldSize + 4-byte inode number
	DentriesPerBlock = BlockSize / DentrySize // 8

	MaxInodeBlocks = NDirectSlots + 256 // 270
	MaxFileSize    = MaxInodeBlocks * BlockSize

	// MaxInodes is the number of inode numbers the inode bitmap can
	// represent (ImapSize*8). The inode table itself spans InodeBlocks
	// blocks — room for far more records than the bitmap can ever mark
	// allocated — matching the original layout rather than trimming the
	// table down to exactly what the bitmap addresses.
	MaxInodes = ImapSize * 8
)
