// Package basicstream implements a file-like abstraction around a
// blockcache.Cache, giving open file handles in the namespace package an
// io.ReadWriteSeeker (plus ReaderAt/WriterAt/StringWriter) view of an
// object's scattered blocks.
package basicstream

import (
	"fmt"
	"io"
	"math"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/blockcache"
	"github.com/vvsfs/vvsfs/blockio"
)

// Stream is a file-like wrapper around a blockcache.Cache that emulates a
// subset of the functionality provided by an [os.File] instance.
type Stream struct {
	io.Closer
	io.ReaderAt
	io.ReaderFrom
	io.ReadWriteSeeker
	io.StringWriter
	io.WriterAt
	io.WriterTo

	size     int64
	position int64
	data     *blockcache.Cache
	ioFlags  vvsfs.IOFlags
}

// New creates a Stream on top of a block cache. size gives the exact size
// of the stream in bytes; it must be between 0 and data.Size() inclusive.
//
// All relevant behaviors of [vvsfs.IOFlags] are honored: read/write
// permission is enforced (e.g. writing a stream opened with O_RDONLY
// fails with ErrNotPermitted), and O_APPEND/O_SYNC/O_TRUNC are obeyed.
func New(size int64, data *blockcache.Cache, flags vvsfs.IOFlags) (*Stream, error) {
	maxSize := data.Size()
	if size < 0 || size > maxSize {
		return nil, fmt.Errorf("invalid stream size: %d not in the range [0, %d]", size, maxSize)
	}

	stream := &Stream{
		size:    size,
		data:    data,
		ioFlags: flags,
	}

	if flags.Truncate() {
		return stream, stream.Truncate(0)
	}
	return stream, nil
}

func (stream *Stream) convertLinearAddr(offset int64) (blockio.LogicalBlock, uint) {
	bytesPerBlock := int64(stream.data.BytesPerBlock())
	return blockio.LogicalBlock(offset / bytesPerBlock), uint(offset % bytesPerBlock)
}

// Close writes out all pending changes to the underlying storage. The
// stream should not be used for I/O after calling this.
func (stream *Stream) Close() error {
	return stream.Sync()
}

func (stream *Stream) Read(buffer []byte) (int, error) {
	totalRead, err := stream.ReadAt(buffer, stream.position)
	stream.position += int64(totalRead)
	return totalRead, err
}

func (stream *Stream) ReadAt(buffer []byte, offset int64) (int, error) {
	if !stream.ioFlags.Read() {
		return 0, vvsfs.ErrNotPermitted
	}

	bufLen := int64(len(buffer))

	var numBytesToRead int64
	if offset >= stream.size {
		return 0, io.EOF
	} else if offset+bufLen >= stream.size {
		numBytesToRead = stream.size - offset
	} else {
		numBytesToRead = bufLen
	}

	firstBlock, firstBlockOffset := stream.convertLinearAddr(offset)
	lastBlock, _ := stream.convertLinearAddr(offset + numBytesToRead)

	sourceData := make([]byte, (uint(lastBlock-firstBlock)+1)*stream.data.BytesPerBlock())
	if err := stream.data.Read(firstBlock, sourceData); err != nil {
		return 0, err
	}

	copy(buffer, sourceData[firstBlockOffset:firstBlockOffset+uint(numBytesToRead)])

	if numBytesToRead < bufLen {
		err = io.EOF
	}
	return int(numBytesToRead), err
}

func (stream *Stream) ReadFrom(r io.Reader) (n int64, err error) {
	if !stream.ioFlags.Write() {
		return 0, vvsfs.ErrNotPermitted
	}

	otherStream, ok := r.(*Stream)
	var blockSize int
	if ok {
		blockSize = int(otherStream.data.BytesPerBlock())
	} else {
		blockSize = 512
	}

	buffer := make([]byte, blockSize)
	totalBytesRead := int64(0)
	for {
		lastReadSize, readErr := r.Read(buffer)
		totalBytesRead += int64(lastReadSize)

		_, writeErr := stream.Write(buffer[:lastReadSize])
		if readErr == io.EOF {
			return totalBytesRead, nil
		} else if readErr != nil {
			return totalBytesRead, readErr
		} else if writeErr != nil {
			return totalBytesRead, writeErr
		}
	}
}

// Seek resets the stream pointer to offset bytes from the origin named by
// whence, one of [io.SeekStart], [io.SeekCurrent], [io.SeekEnd]. Seeking
// past the end is allowed; the stream grows on the next write.
func (stream *Stream) Seek(offset int64, whence int) (int64, error) {
	var absoluteOffset int64

	switch whence {
	case io.SeekStart:
		absoluteOffset = offset
	case io.SeekCurrent:
		absoluteOffset = stream.position + offset
	case io.SeekEnd:
		absoluteOffset = stream.size + offset
	default:
		return stream.position, fmt.Errorf("invalid seek origin: %d", whence)
	}

	if absoluteOffset < 0 {
		return stream.position, fmt.Errorf(
			"result of Seek(offset=%d, whence=%d) is negative", offset, whence)
	}

	stream.position = absoluteOffset
	return absoluteOffset, nil
}

// Size returns the size of the stream, in bytes.
func (stream *Stream) Size() int64 {
	return stream.size
}

// Sync writes out all pending changes to the backing storage.
func (stream *Stream) Sync() error {
	return stream.data.FlushAll()
}

// Tell returns the current stream position.
func (stream *Stream) Tell() int64 {
	return stream.position
}

// Truncate resizes the stream to size bytes without moving the stream
// pointer.
func (stream *Stream) Truncate(size int64) error {
	if !stream.ioFlags.Write() {
		return vvsfs.ErrNotPermitted
	}

	if size < 0 {
		return fmt.Errorf("truncate failed: %d is not a valid file size", size)
	} else if uint64(size) > math.MaxUint32 {
		return fmt.Errorf("truncate failed: new file size %d is too large", size)
	}

	newTotalBlocks := stream.data.LengthToNumBlocks(uint(size))
	stream.data.Resize(newTotalBlocks)
	stream.size = size

	if stream.ioFlags.Synchronous() {
		return stream.Sync()
	}
	return nil
}

func (stream *Stream) Write(buffer []byte) (int, error) {
	var err error

	if !stream.ioFlags.Write() {
		return 0, vvsfs.ErrNotPermitted
	}

	if stream.ioFlags.Append() {
		_, err = stream.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
	}

	// implWriteAt, not WriteAt: WriteAt refuses O_APPEND streams.
	totalWritten, err := stream.implWriteAt(buffer, stream.position)
	stream.position += int64(totalWritten)
	return totalWritten, err
}

func (stream *Stream) implWriteAt(buffer []byte, offset int64) (int, error) {
	if !stream.ioFlags.Write() {
		return 0, vvsfs.ErrNotPermitted
	}

	bufLen := int64(len(buffer))
	startBlock, startOffset := stream.convertLinearAddr(offset)
	lastBlock, _ := stream.convertLinearAddr(offset + bufLen)

	if uint(lastBlock) >= stream.data.TotalBlocks() {
		if err := stream.Truncate(offset + bufLen); err != nil {
			return 0, err
		}
	}

	targetSlice := make([]byte, (uint(lastBlock-startBlock)+1)*stream.data.BytesPerBlock())
	if err := stream.data.Read(startBlock, targetSlice); err != nil {
		return 0, err
	}

	copy(targetSlice[startOffset:], buffer)
	if err := stream.data.Write(startBlock, targetSlice); err != nil {
		return 0, err
	}

	if stream.ioFlags.Synchronous() {
		return len(buffer), stream.Sync()
	}
	return len(buffer), nil
}

func (stream *Stream) WriteAt(buffer []byte, offset int64) (int, error) {
	if stream.ioFlags.Append() {
		return 0, vvsfs.ErrNotPermitted
	}
	return stream.implWriteAt(buffer, offset)
}

// WriteString writes a string to the stream.
func (stream *Stream) WriteString(s string) (int, error) {
	return stream.Write([]byte(s))
}

func (stream *Stream) WriteTo(w io.Writer) (n int64, err error) {
	buffer := make([]byte, stream.data.BytesPerBlock())
	totalWritten := int64(0)

	for {
		blockSize, readErr := stream.Read(buffer)
		if blockSize > 0 {
			w.Write(buffer[:blockSize])
			totalWritten += int64(blockSize)
		}

		if readErr == io.EOF {
			return totalWritten, nil
		} else if readErr != nil {
			return totalWritten, readErr
		}
	}
}
