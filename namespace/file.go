package namespace

import (
	"os"
	"time"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/basicstream"
	"github.com/vvsfs/vvsfs/blockcache"
	"github.com/vvsfs/vvsfs/blockio"
	"github.com/vvsfs/vvsfs/inode"
	"github.com/vvsfs/vvsfs/layout"
)

// Open returns a vvsfs.File view of h backed by a blockcache.Cache, for
// callers that want os.File-style Read/Write/Seek instead of the raw
// block-indexed ReadBlocks/WriteBlocks. The cache is sized to the
// object's current block count at open time; growing the object past
// that requires an explicit Resize before writing past the old end,
// the same contract ReadBlocks/WriteBlocks already impose — the block
// mapper only ever allocates the block immediately past the current
// end (spec.md §4.2), so there's no sparse-gap allocation for a Stream
// to paper over.
func (h *Handle) Open(flags vvsfs.IOFlags) (vvsfs.File, error) {
	fetch := func(blockIndex blockio.LogicalBlock, buffer []byte) error {
		return h.ReadBlocks(blockIndex, buffer)
	}
	flush := func(blockIndex blockio.LogicalBlock, buffer []byte) error {
		return h.WriteBlocks(blockIndex, buffer)
	}

	cache := blockcache.New(layout.BlockSize, uint(h.node.IDBCount), fetch, flush)
	stream, err := basicstream.New(int64(h.node.Size), cache, flags)
	if err != nil {
		return nil, err
	}
	return &file{Stream: stream, handle: h}, nil
}

// file adapts a basicstream.Stream into vvsfs.File by adding the
// Name/Stat methods a bare Stream doesn't have a handle to provide, and
// by keeping the inode's Size field in step with the stream.
//
// Stream.size only grows when a write forces the cache to add a block
// (see Truncate in implWriteAt); a write that lands entirely within
// blocks the inode already owns — which is every inode, since Allocate
// always hands out one data block up front — never touches it. Without
// the overrides below, h.node.Size would stay 0 forever and a later
// Open of the same object would hand back a Stream sized to nothing.
type file struct {
	*basicstream.Stream
	handle *Handle
}

func (f *file) Write(p []byte) (int, error) {
	n, err := f.Stream.Write(p)
	f.growTo(f.Stream.Tell())
	return n, err
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	n, err := f.Stream.WriteAt(p, off)
	f.growTo(off + int64(n))
	return n, err
}

func (f *file) WriteString(s string) (int, error) {
	n, err := f.Stream.WriteString(s)
	f.growTo(f.Stream.Tell())
	return n, err
}

// growTo records that the object's logical content now extends to end
// bytes, if that's past what's on record.
func (f *file) growTo(end int64) {
	if end > int64(f.handle.node.Size) {
		f.handle.node.Size = uint32(end)
		f.handle.node.Touch()
		f.handle.node.MarkDirty()
	}
}

// Close flushes the stream and, if the write path above grew the
// object, persists the updated inode.
func (f *file) Close() error {
	if err := f.Stream.Close(); err != nil {
		return err
	}
	if f.handle.node.Dirty() {
		return inode.WriteBack(f.handle.v, f.handle.node)
	}
	return nil
}

func (f *file) Name() string {
	return f.handle.Name()
}

func (f *file) Stat() (os.FileInfo, error) {
	return fileInfo{stat: f.handle.Stat()}, nil
}

// fileInfo adapts a vvsfs.FileStat to os.FileInfo for vvsfs.File.Stat.
type fileInfo struct {
	stat vvsfs.FileStat
}

func (fi fileInfo) Name() string       { return "" }
func (fi fileInfo) Size() int64        { return fi.stat.Size }
func (fi fileInfo) Mode() os.FileMode  { return fi.stat.ModeFlags }
func (fi fileInfo) ModTime() time.Time { return fi.stat.LastModified }
func (fi fileInfo) IsDir() bool        { return fi.stat.IsDir() }
func (fi fileInfo) Sys() any           { return fi.stat }
