package blockio

import (
	"fmt"
	"io"
)

// Stream wraps an io.ReadWriteSeeker so it can only be addressed in whole
// blocks. The volume package lays its superblock, bitmaps, inode table, and
// data region out over a single Stream.
//
// The exported fields are informational; callers must not mutate them.
type Stream struct {
	// BytesPerBlock gives the size of a block on this device, in bytes. All
	// reads and writes must be done in integer multiples of this size.
	BytesPerBlock uint
	// TotalBlocks is the total number of blocks in this stream.
	TotalBlocks uint
	// StartOffset is a byte offset from the beginning of the backing stream
	// that is considered the beginning of block 0.
	StartOffset int64
	stream      io.ReadWriteSeeker
}

// NewStream wraps stream as a block stream with blockSize-byte blocks,
// totalBlocks of them, starting startOffset bytes into the backing stream.
func NewStream(
	stream io.ReadWriteSeeker, totalBlocks uint, blockSize uint, startOffset int64,
) Stream {
	return Stream{
		StartOffset:   startOffset,
		BytesPerBlock: blockSize,
		TotalBlocks:   totalBlocks,
		stream:        stream,
	}
}

// DetermineBlockCount gives the number of whole blockSize-byte blocks in
// stream, rounded down.
func DetermineBlockCount(stream io.Seeker, blockSize uint) (uint, error) {
	offset, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return uint(offset / int64(blockSize)), nil
}

// BlockToFileOffset converts a physical block ID into a byte offset into the
// backing I/O stream.
func (s *Stream) BlockToFileOffset(block PhysicalBlock) (int64, error) {
	if uint(block) >= s.TotalBlocks {
		return -1, fmt.Errorf(
			"invalid block %d: not in range [0, %d)", block, s.TotalBlocks)
	}
	return s.StartOffset + (int64(block) * int64(s.BytesPerBlock)), nil
}

// CheckIOBounds reports whether dataLength bytes can be read from or
// written to the stream starting at block.
func (s *Stream) CheckIOBounds(block PhysicalBlock, dataLength uint) error {
	if uint(block) >= s.TotalBlocks {
		return fmt.Errorf(
			"invalid block %d: not in range [0, %d)", block, s.TotalBlocks)
	}

	if dataLength%s.BytesPerBlock != 0 {
		return fmt.Errorf(
			"data must be a multiple of the block size (%d B), got %d (remainder %d)",
			s.BytesPerBlock, dataLength, dataLength%s.BytesPerBlock)
	}

	dataSizeInBlocks := dataLength / s.BytesPerBlock
	if uint(block)+dataSizeInBlocks > s.TotalBlocks {
		return fmt.Errorf(
			"block %d plus %d blocks of data extends past end of image",
			block, dataSizeInBlocks)
	}
	return nil
}

func (s *Stream) seekToBlock(block PhysicalBlock) error {
	offset, err := s.BlockToFileOffset(block)
	if err != nil {
		return err
	}
	_, err = s.stream.Seek(offset, io.SeekStart)
	return err
}

// ReadBlocks reads count whole blocks starting at block.
func (s *Stream) ReadBlocks(block PhysicalBlock, count uint) ([]byte, error) {
	if err := s.CheckIOBounds(block, count*s.BytesPerBlock); err != nil {
		return nil, err
	}
	if err := s.seekToBlock(block); err != nil {
		return nil, err
	}

	buffer := make([]byte, s.BytesPerBlock*count)
	n, err := io.ReadFull(s.stream, buffer)
	if err != nil {
		return nil, err
	}
	if n < len(buffer) {
		return nil, fmt.Errorf("short read: wanted %d bytes, got %d", len(buffer), n)
	}
	return buffer, nil
}

// WriteBlocks writes data to the stream starting at block. data must be a
// whole multiple of the block size.
func (s *Stream) WriteBlocks(block PhysicalBlock, data []byte) error {
	if err := s.CheckIOBounds(block, uint(len(data))); err != nil {
		return err
	}
	if err := s.seekToBlock(block); err != nil {
		return err
	}
	_, err := s.stream.Write(data)
	return err
}

// Resize grows or shrinks the backing stream to hold exactly newNumBlocks
// blocks. Growing pads with null blocks; shrinking requires the backing
// stream to have a Truncate(size int64) error method (the vvsfs.Truncator
// method set).
func (s *Stream) Resize(newNumBlocks uint) error {
	if s.TotalBlocks == newNumBlocks {
		return nil
	}

	if s.TotalBlocks < newNumBlocks {
		numMissing := newNumBlocks - s.TotalBlocks
		if _, err := s.stream.Write(make([]byte, s.BytesPerBlock*numMissing)); err != nil {
			return err
		}
	} else {
		truncator, ok := s.stream.(interface{ Truncate(size int64) error })
		if !ok {
			return fmt.Errorf(
				"can't resize image from %d blocks to %d: the underlying stream"+
					" doesn't support truncation",
				s.TotalBlocks, newNumBlocks)
		}
		if err := truncator.Truncate(int64(newNumBlocks) * int64(s.BytesPerBlock)); err != nil {
			return err
		}
	}

	s.TotalBlocks = newNumBlocks
	return nil
}
