package volume

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/layout"
)

// Validate runs a handful of fsck-lite sanity checks against the mounted
// volume and reports every problem found, not just the first —
// go-multierror lets callers inspect the full list of independent
// structural problems in one pass, which a single returned error can't
// represent.
func (v *Volume) Validate() error {
	var result *multierror.Error

	// The bitmaps are checked as stored on disk: the in-memory copies always
	// have position 0 set, since bitmap.New reserves it on Open. Position 0
	// is the MSB of each bitmap's first byte.
	imapBlock, err := v.ReadBlock(layout.InodeBitmapBlock)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to read inode bitmap block: %w", err))
	} else if imapBlock[0]&0x80 == 0 {
		result = multierror.Append(result, fmt.Errorf("inode bitmap position 0 (root inode) is not reserved"))
	}
	dmapBlock, err := v.ReadBlock(layout.DataBitmapBlock)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to read data bitmap block: %w", err))
	} else if dmapBlock[0]&0x80 == 0 {
		result = multierror.Append(result, fmt.Errorf("data bitmap position 0 (root data block) is not reserved"))
	}

	rootBlock, err := v.ReadBlock(layout.InodeBlockOff)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to read root inode block: %w", err))
		return result.ErrorOrNil()
	}
	if mode := binary.LittleEndian.Uint32(rootBlock[offMode:]); mode&vvsfs.S_IFDIR == 0 {
		result = multierror.Append(result, fmt.Errorf("root inode (ino 1) is not marked as a directory (mode %#o)", mode))
	}

	return result.ErrorOrNil()
}
